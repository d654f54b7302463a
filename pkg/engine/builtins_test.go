package engine

import (
	"strings"
	"testing"

	"github.com/chazu/directshape/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(direct-shape b :category "Mass")`,
			expect: `(direct_shape b "__kw_category" "Mass")`,
		},
		{
			name:   "multiple keywords",
			input:  `(rotate b :x 90 :z 45)`,
			expect: `(rotate b "__kw_x" 90 "__kw_z" 45)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(mesh-box lo hi)`,
			expect: `(mesh_box lo hi)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(vec3 -1 0 -2.5)`,
			expect: `(vec3 -1 0 -2.5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:default-category`,
			expect: `"__kw_default-category"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// evalOK evaluates source and fails the test on any error.
func evalOK(t *testing.T, source string) *Program {
	t.Helper()
	p, evalErrs, err := newTestEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if p == nil {
		t.Fatal("expected non-nil program")
	}
	return p
}

// evalFails evaluates source and returns the first eval error message.
func evalFails(t *testing.T, source string) string {
	t.Helper()
	p, evalErrs, err := newTestEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if p != nil {
		t.Fatal("expected nil program on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}
	return evalErrs[0].Message
}

// ---------------------------------------------------------------------------
// Shape request tests
// ---------------------------------------------------------------------------

func TestDirectShapeBox(t *testing.T) {
	p := evalOK(t, `(direct-shape (box 10 20 30) :category "Mass" :name "plinth")`)

	if len(p.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(p.Requests))
	}
	req := p.Requests[0]
	if req.Callsite != "plinth" {
		t.Errorf("callsite = %q, want plinth", req.Callsite)
	}
	if req.Category != "Mass" {
		t.Errorf("category = %q, want Mass", req.Category)
	}
	if req.Multi {
		t.Error("single request should not use the multi-body policy")
	}
	if len(req.Bodies) != 1 || req.Bodies[0].Kind() != kernel.KindSolid {
		t.Fatalf("expected one solid body, got %v", req.Bodies)
	}

	bb, err := req.Bodies[0].BoundingBox()
	if err != nil {
		t.Fatalf("BoundingBox failed: %v", err)
	}
	if !kernel.NearlyEqual(bb.Max, r3.Vec{X: 5, Y: 10, Z: 15}, 1e-9) {
		t.Errorf("box max = %v, want {5 10 15}", bb.Max)
	}
}

func TestDefaultCategoryAndCallsite(t *testing.T) {
	p := evalOK(t, `
(direct-shape (sphere 1))
(direct-shape (sphere 2) :category :Furniture)
`)
	if len(p.Requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(p.Requests))
	}
	if p.Requests[0].Category != DefaultCategory {
		t.Errorf("category = %q, want %q", p.Requests[0].Category, DefaultCategory)
	}
	if p.Requests[1].Category != "Furniture" {
		t.Errorf("keyword category = %q, want Furniture", p.Requests[1].Category)
	}

	// Generated call sites follow evaluation order.
	expected := []string{"direct-shape/1", "direct-shape/2"}
	for i, r := range p.Requests {
		if r.Callsite != expected[i] {
			t.Errorf("request %d callsite = %q, want %q", i, r.Callsite, expected[i])
		}
	}
}

func TestEngineDefaultCategoryOption(t *testing.T) {
	eng := NewEngine(nil, WithDefaultCategory("Site"))
	p, evalErrs, err := eng.Evaluate(`(direct-shape (mesh-box (vec3 0 0 0) (vec3 1 1 1)))`)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluate failed: %v %v", err, evalErrs)
	}
	if p.Requests[0].Category != "Site" {
		t.Errorf("category = %q, want Site", p.Requests[0].Category)
	}
}

func TestVariableReference(t *testing.T) {
	p := evalOK(t, `
(def far (vec3 1000 2000 3000))
(def part (translate (mesh-box (vec3 0 0 0) (vec3 2 2 2)) far))
(direct-shape part)
`)
	c, err := p.Requests[0].Bodies[0].Centroid()
	if err != nil {
		t.Fatalf("Centroid failed: %v", err)
	}
	if !kernel.NearlyEqual(c, r3.Vec{X: 1001, Y: 2001, Z: 3001}, 1e-9) {
		t.Errorf("centroid = %v, want {1001 2001 3001}", c)
	}
}

func TestDirectShapesMulti(t *testing.T) {
	p := evalOK(t, `
(def a (mesh-box (vec3 -1 -1 -1) (vec3 1 1 1)))
(def b (mesh-box (vec3 9 -1 -1) (vec3 11 1 1)))
(direct-shapes (list a b) :name "pair")
`)
	req := p.Requests[0]
	if !req.Multi {
		t.Error("direct-shapes should use the multi-body policy")
	}
	if len(req.Bodies) != 2 {
		t.Fatalf("expected 2 bodies, got %d", len(req.Bodies))
	}
	if len(p.Bodies()) != 2 {
		t.Errorf("Program.Bodies() = %d, want 2", len(p.Bodies()))
	}
}

func TestBooleansAndRotate(t *testing.T) {
	p := evalOK(t, `
(def slab (box 100 10 10))
(def turned (rotate slab :z 90))
(def u (union (box 50 50 50) (translate (box 50 50 50) (vec3 30 0 0))))
(direct-shape turned :name "turned")
(direct-shape u :name "union")
(direct-shape (difference (box 10 10 10) (cylinder 20 2)) :name "holed")
(direct-shape (intersection (box 10 10 10) (sphere 6)) :name "rounded")
`)
	if len(p.Requests) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(p.Requests))
	}

	bb, err := p.Requests[0].Bodies[0].BoundingBox()
	if err != nil {
		t.Fatalf("BoundingBox failed: %v", err)
	}
	if ext := bb.Max.Y - bb.Min.Y; ext < 99 || ext > 101 {
		t.Errorf("rotated Y extent = %f, expected ~100", ext)
	}

	bb, err = p.Requests[1].Bodies[0].BoundingBox()
	if err != nil {
		t.Fatalf("BoundingBox failed: %v", err)
	}
	if bb.Min.X > -24.99 || bb.Max.X < 54.99 {
		t.Errorf("union X extent = [%f, %f], expected [-25, 55]", bb.Min.X, bb.Max.X)
	}
}

func TestSurfaceAndCurve(t *testing.T) {
	p := evalOK(t, `
(direct-shape (translate (rectangle 4 2) (vec3 0 0 3)) :name "floor")
(direct-shape (polyline (vec3 0 0 0) (vec3 4 0 0) (vec3 4 2 0)) :name "path")
(direct-shape (disc 1) :name "pad")
`)
	kinds := []kernel.Kind{kernel.KindSurface, kernel.KindCurve, kernel.KindSurface}
	for i, r := range p.Requests {
		if got := r.Bodies[0].Kind(); got != kinds[i] {
			t.Errorf("request %d kind = %s, want %s", i, got, kinds[i])
		}
	}
	pl, ok := p.Requests[1].Bodies[0].(*kernel.Polyline)
	if !ok {
		t.Fatalf("expected *kernel.Polyline, got %T", p.Requests[1].Bodies[0])
	}
	if pl.Length() != 6 {
		t.Errorf("polyline length = %f, want 6", pl.Length())
	}
}

func TestScale(t *testing.T) {
	p := evalOK(t, `(direct-shape (scale (mesh-box (vec3 0 0 0) (vec3 1 1 1)) 3))`)
	bb, err := p.Requests[0].Bodies[0].BoundingBox()
	if err != nil {
		t.Fatalf("BoundingBox failed: %v", err)
	}
	if bb.Max != (r3.Vec{X: 3, Y: 3, Z: 3}) {
		t.Errorf("scaled max = %v, want {3 3 3}", bb.Max)
	}
}

func TestCentroidBuiltin(t *testing.T) {
	p := evalOK(t, `
(def m (mesh-box (vec3 10 20 30) (vec3 12 22 32)))
(def c (centroid m))
(direct-shape (translate m c))
`)
	bb, err := p.Requests[0].Bodies[0].BoundingBox()
	if err != nil {
		t.Fatalf("BoundingBox failed: %v", err)
	}
	if !kernel.NearlyEqual(bb.Min, r3.Vec{X: 21, Y: 41, Z: 61}, 1e-9) {
		t.Errorf("min = %v, want {21 41 61}", bb.Min)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		contain string
	}{
		{"vec3 arity", `(vec3 1 2)`, "exactly 3"},
		{"box non-number", `(box 1 "two" 3)`, "expected number"},
		{"negative sphere", `(sphere -1)`, "sphere"},
		{"union one body", `(union (box 1 1 1))`, "at least 2"},
		{"union mesh solid", `(union (box 1 1 1) (mesh-box (vec3 0 0 0) (vec3 1 1 1)))`, "mesh solid"},
		{"rotate curve", `(rotate (polyline (vec3 0 0 0) (vec3 1 0 0)) :z 10)`, "expected solid"},
		{"inverted mesh box", `(mesh-box (vec3 1 1 1) (vec3 0 0 0))`, "below max"},
		{"polyline one point", `(polyline (vec3 0 0 0))`, "at least 2"},
		{"direct-shape no body", `(direct-shape :category "Mass")`, "at least one body"},
		{"direct-shape many bodies", `(direct-shape (list (sphere 1) (sphere 2)))`, "direct-shapes"},
		{"duplicate name", `(direct-shape (sphere 1) :name "a") (direct-shape (sphere 1) :name "a")`, "duplicate"},
		{"scale zero", `(scale (sphere 1) 0)`, "positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := evalFails(t, tt.source)
			if !strings.Contains(msg, tt.contain) {
				t.Errorf("error %q does not contain %q", msg, tt.contain)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Regressions
// ---------------------------------------------------------------------------

func TestEmptySourceStillWorks(t *testing.T) {
	p := evalOK(t, "")
	if len(p.Requests) != 0 {
		t.Errorf("expected empty program, got %d requests", len(p.Requests))
	}
}

func TestArithmeticStillWorks(t *testing.T) {
	evalOK(t, "(+ 1 2)")
}
