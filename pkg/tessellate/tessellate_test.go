package tessellate_test

import (
	"errors"
	"testing"

	"github.com/chazu/directshape/pkg/kernel"
	"github.com/chazu/directshape/pkg/kernel/sdfx"
	"github.com/chazu/directshape/pkg/tessellate"
	"gonum.org/v1/gonum/spatial/r3"
)

// newKernel returns a coarse sdfx kernel for testing.
func newKernel() *sdfx.SdfxKernel {
	return sdfx.New(sdfx.WithMeshCells(32))
}

func TestSingleBox(t *testing.T) {
	k := newKernel()
	tess := tessellate.New(k)

	mesh, err := tess.Tessellate(k.Box(10, 20, 30))
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if mesh.TriangleCount() == 0 {
		t.Fatal("expected triangles for box")
	}
	t.Logf("box triangle count: %d", mesh.TriangleCount())
}

func TestTriangleMeshRendersWithoutKernel(t *testing.T) {
	tess := tessellate.New(nil)
	box := kernel.BoxMesh(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})

	mesh, err := tess.Tessellate(box)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if mesh.TriangleCount() != 12 {
		t.Errorf("triangle count = %d, expected 12", mesh.TriangleCount())
	}
}

func TestSurface(t *testing.T) {
	k := newKernel()
	mesh, err := tessellate.New(k).Tessellate(k.Rectangle(2, 2))
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("surface mesh is empty")
	}
}

func TestRejectsCurveAndNil(t *testing.T) {
	tess := tessellate.New(newKernel())

	tests := []struct {
		name string
		body kernel.Body
	}{
		{"curve", kernel.NewPolyline(r3.Vec{}, r3.Vec{X: 1})},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tess.Tessellate(tt.body); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	_, err := tess.Tessellate(kernel.NewPolyline(r3.Vec{}, r3.Vec{X: 1}))
	if !errors.Is(err, tessellate.ErrNotTessellable) {
		t.Errorf("error = %v, want ErrNotTessellable", err)
	}
}

func TestNoKernelForSolid(t *testing.T) {
	k := newKernel()
	if _, err := tessellate.New(nil).Tessellate(k.Sphere(1)); err == nil {
		t.Fatal("expected error without a kernel")
	}
}

func TestTessellateAllNamesParts(t *testing.T) {
	tess := tessellate.New(nil)
	bodies := []kernel.Body{
		kernel.BoxMesh(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}),
		kernel.BoxMesh(r3.Vec{X: 2}, r3.Vec{X: 3, Y: 1, Z: 1}),
	}

	meshes, err := tess.TessellateAll(bodies, []string{"left"})
	if err != nil {
		t.Fatalf("TessellateAll failed: %v", err)
	}
	if len(meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(meshes))
	}

	// Verify part names: explicit name first, generated name second.
	expected := []string{"left", "body-1"}
	for i, m := range meshes {
		if m.PartName != expected[i] {
			t.Errorf("mesh %d PartName = %q, expected %q", i, m.PartName, expected[i])
		}
	}
}

func TestTessellateAllReportsIndex(t *testing.T) {
	tess := tessellate.New(nil)
	bodies := []kernel.Body{
		kernel.BoxMesh(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}),
		kernel.NewPolyline(r3.Vec{}, r3.Vec{Y: 1}),
	}
	_, err := tess.TessellateAll(bodies, nil)
	if err == nil {
		t.Fatal("expected error for curve")
	}
	if !errors.Is(err, tessellate.ErrNotTessellable) {
		t.Errorf("error = %v, want ErrNotTessellable", err)
	}
}

func TestMerge(t *testing.T) {
	a := kernel.BoxMesh(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}).Render()
	a.PartName = "a"
	b := kernel.BoxMesh(r3.Vec{X: 5}, r3.Vec{X: 6, Y: 1, Z: 1}).Render()
	b.PartName = "b"

	merged := tessellate.Merge([]*kernel.Mesh{a, nil, b})
	if merged.TriangleCount() != 24 {
		t.Errorf("merged triangles = %d, expected 24", merged.TriangleCount())
	}
	if merged.PartName != "a+b" {
		t.Errorf("merged PartName = %q, expected %q", merged.PartName, "a+b")
	}

	// The last triangle must come from b.
	last := merged.Triangle(merged.TriangleCount() - 1)
	if last[0][0] < 5 {
		t.Errorf("last triangle starts at x=%f, expected a vertex of b", last[0][0])
	}
}
