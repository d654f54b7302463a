package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/directshape/pkg/kernel"
	"github.com/chazu/directshape/pkg/kernel/sdfx"
	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms directshape Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: direct-shape -> direct_shape
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpBody wraps a kernel.Body so it can be passed between builtins.
type sexpBody struct {
	body kernel.Body
}

func (b *sexpBody) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(body %s)", b.body.Kind())
}
func (b *sexpBody) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps an r3.Vec.
type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_mass) and plain strings ("Mass").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toBody extracts a kernel.Body from a sexpBody.
func toBody(s zygo.Sexp) (kernel.Body, error) {
	if b, ok := s.(*sexpBody); ok {
		return b.body, nil
	}
	return nil, fmt.Errorf("expected body, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts an r3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toBodies flattens positional arguments, each a body or a list of bodies.
func toBodies(args []zygo.Sexp) ([]kernel.Body, error) {
	var out []kernel.Body
	for i, a := range args {
		if b, err := toBody(a); err == nil {
			out = append(out, b)
			continue
		}
		items, err := sexpListToSlice(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: expected body or list of bodies, got %T", i+1, a)
		}
		for j, item := range items {
			b, err := toBody(item)
			if err != nil {
				return nil, fmt.Errorf("argument %d item %d: %w", i+1, j+1, err)
			}
			out = append(out, b)
		}
	}
	return out, nil
}

// positionalFloats extracts exactly n numeric positional arguments.
func positionalFloats(fn string, args []zygo.Sexp, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s requires exactly %d arguments, got %d", fn, n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", fn, i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

// guarded runs a kernel constructor, turning kernel panics (invalid
// dimensions, foreign bodies) into evaluation errors.
func guarded(fn string, build func() kernel.Body) (s zygo.Sexp, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = zygo.SexpNull, fmt.Errorf("%s: %v", fn, r)
		}
	}()
	return &sexpBody{body: build()}, nil
}

// requireSdfx rejects bodies the sdfx kernel cannot combine.
func requireSdfx(fn string, bodies ...kernel.Body) error {
	for i, b := range bodies {
		if b.Kind() != kernel.KindSolid {
			return fmt.Errorf("%s: argument %d is a %s, expected solid", fn, i+1, b.Kind())
		}
		if _, isMesh := b.(*kernel.TriangleMesh); isMesh {
			return fmt.Errorf("%s: argument %d is a mesh solid, which cannot be combined", fn, i+1)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// DefaultCategory is used by direct shape requests that name no category.
const DefaultCategory = "Generic Models"

// registerBuiltins installs the geometry builtins into a zygomys environment.
// Shape requests are appended to p during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, k *sdfx.SdfxKernel, p *Program, defaultCategory string) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		f, err := positionalFloats("vec3", args, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec3{vec: r3.Vec{X: f[0], Y: f[1], Z: f[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (box 10 20 30), centered at the origin
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		f, err := positionalFloats("box", args, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return guarded("box", func() kernel.Body { return k.Box(f[0], f[1], f[2]) })
	})

	// -----------------------------------------------------------------------
	// (sphere 1)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		f, err := positionalFloats("sphere", args, 1)
		if err != nil {
			return zygo.SexpNull, err
		}
		return guarded("sphere", func() kernel.Body { return k.Sphere(f[0]) })
	})

	// -----------------------------------------------------------------------
	// (cylinder height radius)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		f, err := positionalFloats("cylinder", args, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return guarded("cylinder", func() kernel.Body { return k.Cylinder(f[0], f[1], 32) })
	})

	// -----------------------------------------------------------------------
	// (rectangle 4 2) and (disc 1): planar surfaces at z = 0
	// -----------------------------------------------------------------------
	env.AddFunction("rectangle", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		f, err := positionalFloats("rectangle", args, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return guarded("rectangle", func() kernel.Body { return k.Rectangle(f[0], f[1]) })
	})

	env.AddFunction("disc", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		f, err := positionalFloats("disc", args, 1)
		if err != nil {
			return zygo.SexpNull, err
		}
		return guarded("disc", func() kernel.Body { return k.Disc(f[0]) })
	})

	// -----------------------------------------------------------------------
	// (mesh-box (vec3 0 0 0) (vec3 1 2 3)): exact triangle mesh solid
	// -----------------------------------------------------------------------
	env.AddFunction("mesh_box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("mesh-box requires a min and a max corner")
		}
		lo, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh-box: min: %w", err)
		}
		hi, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh-box: max: %w", err)
		}
		if lo.X >= hi.X || lo.Y >= hi.Y || lo.Z >= hi.Z {
			return zygo.SexpNull, fmt.Errorf("mesh-box: min %v must be below max %v on every axis", lo, hi)
		}
		return &sexpBody{body: kernel.BoxMesh(lo, hi)}, nil
	})

	// -----------------------------------------------------------------------
	// (polyline (vec3 0 0 0) (vec3 1 0 0) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("polyline", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("polyline requires at least 2 points, got %d", len(args))
		}
		pts := make([]r3.Vec, len(args))
		for i, a := range args {
			v, err := toVec3(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polyline: point %d: %w", i+1, err)
			}
			pts[i] = v
		}
		return &sexpBody{body: kernel.NewPolyline(pts...)}, nil
	})

	// -----------------------------------------------------------------------
	// (translate body (vec3 5 5 5))
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("translate requires a body and a vec3")
		}
		b, err := toBody(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		v, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		return &sexpBody{body: b.Translate(v)}, nil
	})

	// -----------------------------------------------------------------------
	// (rotate body :z 90), Euler angles in degrees
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("rotate requires one body")
		}
		b, err := toBody(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		if err := requireSdfx("rotate", b); err != nil {
			return zygo.SexpNull, err
		}
		var angles [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			if v, ok := pa.kw[axis]; ok {
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("rotate: %s: %w", axis, err)
				}
				angles[i] = f
			}
		}
		return guarded("rotate", func() kernel.Body { return k.Rotate(b, angles[0], angles[1], angles[2]) })
	})

	// -----------------------------------------------------------------------
	// (scale body 2)
	// -----------------------------------------------------------------------
	env.AddFunction("scale", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("scale requires a body and a factor")
		}
		b, err := toBody(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scale: %w", err)
		}
		f, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scale: %w", err)
		}
		if f <= 0 {
			return zygo.SexpNull, fmt.Errorf("scale: factor must be positive, got %g", f)
		}
		s, ok := b.(kernel.Scaler)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("scale: %s body cannot be scaled", b.Kind())
		}
		return &sexpBody{body: s.Scale(f)}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b ...), (difference a b), (intersection a b)
	// -----------------------------------------------------------------------
	booleans := map[string]func(a, b kernel.Body) kernel.Body{
		"union":        k.Union,
		"difference":   k.Difference,
		"intersection": k.Intersection,
	}
	for fn, op := range booleans {
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			bodies, err := toBodies(args)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			if len(bodies) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 bodies, got %d", fn, len(bodies))
			}
			if err := requireSdfx(fn, bodies...); err != nil {
				return zygo.SexpNull, err
			}
			return guarded(fn, func() kernel.Body {
				acc := bodies[0]
				for _, b := range bodies[1:] {
					acc = op(acc, b)
				}
				return acc
			})
		})
	}

	// -----------------------------------------------------------------------
	// (centroid body) -> vec3
	// -----------------------------------------------------------------------
	env.AddFunction("centroid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("centroid requires one body")
		}
		b, err := toBody(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("centroid: %w", err)
		}
		c, err := b.Centroid()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("centroid: %w", err)
		}
		return &sexpVec3{vec: c}, nil
	})

	// -----------------------------------------------------------------------
	// (direct-shape body :category "Mass" :name "tower")
	// (direct-shapes (list a b) :category "Mass")
	//
	// Registered with underscores; the preprocessor converts the kebab-case
	// names in the source.
	// -----------------------------------------------------------------------
	request := func(fn string, multi bool) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			bodies, err := toBodies(pa.positional)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
			}
			if len(bodies) == 0 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least one body", fn)
			}
			if !multi && len(bodies) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s takes one body, got %d; use direct-shapes", fn, len(bodies))
			}

			req := ShapeRequest{
				Callsite: fmt.Sprintf("%s/%d", fn, len(p.Requests)+1),
				Category: defaultCategory,
				Bodies:   bodies,
				Multi:    multi,
			}
			if v, ok := pa.kw["category"]; ok {
				c, err := toKeywordString(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: category: %w", fn, err)
				}
				req.Category = c
			}
			if v, ok := pa.kw["name"]; ok {
				n, err := toString(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: name: %w", fn, err)
				}
				req.Callsite = n
			}
			for _, prev := range p.Requests {
				if prev.Callsite == req.Callsite {
					return zygo.SexpNull, fmt.Errorf("%s: duplicate name %q", fn, req.Callsite)
				}
			}
			p.Requests = append(p.Requests, req)

			if multi {
				return zygo.SexpNull, nil
			}
			return &sexpBody{body: bodies[0]}, nil
		}
	}
	env.AddFunction("direct_shape", request("direct-shape", false))
	env.AddFunction("direct_shapes", request("direct-shapes", true))
}
