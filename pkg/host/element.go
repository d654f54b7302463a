package host

import (
	"github.com/chazu/directshape/pkg/kernel"
	"github.com/chazu/directshape/pkg/units"
	"gonum.org/v1/gonum/spatial/r3"
)

// ElementID identifies an element within one document.
type ElementID int64

// InvalidElementID is never assigned.
const InvalidElementID ElementID = -1

// Element is anything stored in a document.
type Element interface {
	ID() ElementID
	// UniqueID is stable across documents.
	UniqueID() string
}

// Category groups elements by discipline.
type Category struct {
	id       ElementID
	uniqueID string
	Name     string
}

func (c *Category) ID() ElementID    { return c.id }
func (c *Category) UniqueID() string { return c.uniqueID }

// ImportInstance is geometry brought in from an interchange file. New
// instances are pinned and must be unpinned before they can be moved.
type ImportInstance struct {
	doc      *Document
	id       ElementID
	uniqueID string

	path        string
	unit        units.Unit
	hidden      bool
	pinned      bool
	translation r3.Vec
	bodies      []kernel.Body
}

func (i *ImportInstance) ID() ElementID    { return i.id }
func (i *ImportInstance) UniqueID() string { return i.uniqueID }

// Path is the file the instance was imported from.
func (i *ImportInstance) Path() string { return i.path }

// Unit is the unit the file was read in.
func (i *ImportInstance) Unit() units.Unit { return i.unit }

// Hidden reports whether the instance was imported as non-visible.
func (i *ImportInstance) Hidden() bool { return i.hidden }

// Pinned reports whether the instance is locked in place.
func (i *ImportInstance) Pinned() bool {
	i.doc.mu.Lock()
	defer i.doc.mu.Unlock()
	return i.pinned
}

// Translation is the total displacement applied since import.
func (i *ImportInstance) Translation() r3.Vec {
	i.doc.mu.Lock()
	defer i.doc.mu.Unlock()
	return i.translation
}

// Geometry returns the imported bodies at their current placement.
func (i *ImportInstance) Geometry() []kernel.Body {
	i.doc.mu.Lock()
	defer i.doc.mu.Unlock()
	out := make([]kernel.Body, len(i.bodies))
	for n, b := range i.bodies {
		if i.translation == (r3.Vec{}) {
			out[n] = b
			continue
		}
		out[n] = b.Translate(i.translation)
	}
	return out
}

// DirectShapeElement is a categorized element whose geometry is set
// directly rather than produced by a host family.
type DirectShapeElement struct {
	doc      *Document
	id       ElementID
	uniqueID string

	category *Category
	appID    string
	shapeID  string
	pinned   bool
	shape    []kernel.Body
}

func (d *DirectShapeElement) ID() ElementID    { return d.id }
func (d *DirectShapeElement) UniqueID() string { return d.uniqueID }

// Category is the category the shape was created under.
func (d *DirectShapeElement) Category() *Category { return d.category }

// ApplicationID identifies the application that created the shape.
func (d *DirectShapeElement) ApplicationID() string { return d.appID }

// ShapeID identifies the shape within its application.
func (d *DirectShapeElement) ShapeID() string { return d.shapeID }

// Shape returns the geometry last set on the element.
func (d *DirectShapeElement) Shape() []kernel.Body {
	d.doc.mu.Lock()
	defer d.doc.mu.Unlock()
	return append([]kernel.Body(nil), d.shape...)
}
