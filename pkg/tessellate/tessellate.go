// Package tessellate turns bodies into triangle meshes for export. One mesh
// is produced per body; Merge flattens them into a single export mesh.
package tessellate

import (
	"errors"
	"fmt"

	"github.com/chazu/directshape/pkg/kernel"
)

// ErrNotTessellable is returned for bodies with no area, such as curves.
var ErrNotTessellable = errors.New("tessellate: body has no surface to tessellate")

// Mesher converts kernel-native bodies to meshes. kernel.Kernel satisfies it.
type Mesher interface {
	ToMesh(b kernel.Body) (*kernel.Mesh, error)
}

// renderer is implemented by kernel-independent bodies that carry their own
// triangles.
type renderer interface {
	Render() *kernel.Mesh
}

// Tessellator produces meshes from bodies of any kind.
type Tessellator struct {
	mesher Mesher
}

// New returns a Tessellator that delegates kernel-native bodies to m. m may
// be nil when only triangle mesh bodies are tessellated.
func New(m Mesher) *Tessellator {
	return &Tessellator{mesher: m}
}

// Tessellate produces a mesh for a single body.
func (t *Tessellator) Tessellate(b kernel.Body) (*kernel.Mesh, error) {
	if b == nil {
		return nil, errors.New("tessellate: nil body")
	}
	if b.Kind() == kernel.KindCurve {
		return nil, fmt.Errorf("%w: %s", ErrNotTessellable, b.Kind())
	}

	var mesh *kernel.Mesh
	if r, ok := b.(renderer); ok {
		mesh = r.Render()
	} else {
		if t.mesher == nil {
			return nil, fmt.Errorf("tessellate: no kernel for %T", b)
		}
		m, err := t.mesher.ToMesh(b)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed: %w", err)
		}
		mesh = m
	}

	if mesh == nil || mesh.IsEmpty() {
		return nil, fmt.Errorf("%w: empty mesh for %s body", ErrNotTessellable, b.Kind())
	}
	return mesh, nil
}

// TessellateAll produces one mesh per body. Parts are named from names when
// given, otherwise "body-<index>".
func (t *Tessellator) TessellateAll(bodies []kernel.Body, names []string) ([]*kernel.Mesh, error) {
	meshes := make([]*kernel.Mesh, 0, len(bodies))
	for i, b := range bodies {
		mesh, err := t.Tessellate(b)
		if err != nil {
			return nil, fmt.Errorf("tessellate: body %d: %w", i, err)
		}
		if i < len(names) && names[i] != "" {
			mesh.PartName = names[i]
		} else {
			mesh.PartName = fmt.Sprintf("body-%d", i)
		}
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// Merge concatenates meshes into one. Part names are joined with "+".
func Merge(meshes []*kernel.Mesh) *kernel.Mesh {
	out := &kernel.Mesh{}
	for _, m := range meshes {
		if m == nil {
			continue
		}
		out.Append(m)
		switch {
		case m.PartName == "":
		case out.PartName == "":
			out.PartName = m.PartName
		default:
			out.PartName += "+" + m.PartName
		}
	}
	return out
}
