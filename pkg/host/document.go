// Package host is an in-memory model of the CAD document that direct shapes
// are created in: elements, categories, imported instances, pinning and a
// transaction journal. It implements only the behavior the shape pipeline
// relies on.
package host

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chazu/directshape/pkg/exchange"
	"github.com/chazu/directshape/pkg/kernel"
	"github.com/chazu/directshape/pkg/units"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrUnknownCategory  = errors.New("host: unknown category")
	ErrNoTransaction    = errors.New("host: no open transaction")
	ErrPinned           = errors.New("host: element is pinned")
	ErrElementNotFound  = errors.New("host: element not found")
	ErrNotMovable       = errors.New("host: element cannot be moved")
	ErrEmptyImport      = errors.New("host: imported file has no geometry")
	ErrDuplicateElement = errors.New("host: duplicate shape id")
)

// DefaultCategories are created in every new document.
var DefaultCategories = []string{
	"Generic Models",
	"Mass",
	"Furniture",
	"Walls",
	"Floors",
	"Roofs",
	"Structural Framing",
	"Site",
}

// ImportOptions controls Import.
type ImportOptions struct {
	// Unit the file coordinates are in. Empty means the document unit.
	Unit units.Unit
	// Hidden imports the instance as non-visible.
	Hidden bool
}

// Document holds elements. All methods are safe for concurrent use.
type Document struct {
	mu         sync.Mutex
	unit       units.Unit
	nextID     ElementID
	elements   map[ElementID]Element
	categories map[string]*Category

	depth   int
	journal []func()
}

// NewDocument returns an empty document working in unit, with the default
// categories.
func NewDocument(unit units.Unit) (*Document, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("%w: %q", units.ErrUnknownUnit, unit)
	}
	d := &Document{
		unit:       unit,
		nextID:     1,
		elements:   make(map[ElementID]Element),
		categories: make(map[string]*Category),
	}
	for _, name := range DefaultCategories {
		d.addCategoryLocked(name)
	}
	return d, nil
}

// Unit is the document's internal length unit.
func (d *Document) Unit() units.Unit { return d.unit }

func (d *Document) allocID() ElementID {
	id := d.nextID
	d.nextID++
	return id
}

func categoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (d *Document) addCategoryLocked(name string) *Category {
	c := &Category{id: d.allocID(), uniqueID: uuid.NewString(), Name: name}
	d.categories[categoryKey(name)] = c
	d.elements[c.id] = c
	return c
}

// AddCategory registers a category, returning the existing one when the
// name is already known. Categories are not journaled.
func (d *Document) AddCategory(name string) *Category {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.categories[categoryKey(name)]; ok {
		return c
	}
	return d.addCategoryLocked(name)
}

// Category looks a category up by name, case-insensitively.
func (d *Document) Category(name string) (*Category, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.categories[categoryKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return c, nil
}

// Categories returns category names in sorted order.
func (d *Document) Categories() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.categories))
	for _, c := range d.categories {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Element returns the element with the given id.
func (d *Document) Element(id ElementID) (Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrElementNotFound, id)
	}
	return e, nil
}

// DirectShapes returns every direct shape element ordered by id.
func (d *Document) DirectShapes() []*DirectShapeElement {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*DirectShapeElement
	for _, e := range d.elements {
		if ds, ok := e.(*DirectShapeElement); ok {
			out = append(out, ds)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of elements, categories included.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.elements)
}

func (d *Document) requireTxLocked() error {
	if d.depth == 0 {
		return ErrNoTransaction
	}
	return nil
}

func (d *Document) insertLocked(e Element) {
	d.elements[e.ID()] = e
	d.journal = append(d.journal, func() { delete(d.elements, e.ID()) })
}

// Import reads an STL file and adds its geometry as a pinned import
// instance. The file is welded into one triangle mesh body.
func (d *Document) Import(path string, opts ImportOptions) (Element, error) {
	mesh, err := exchange.ReadFile(path)
	if err != nil {
		return nil, err
	}
	body, err := exchange.Weld(mesh)
	if err != nil {
		return nil, fmt.Errorf("host: import %s: %w", path, err)
	}
	if body.TriangleCount() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyImport, path)
	}

	unit := opts.Unit
	if unit == "" {
		unit = d.unit
	}
	converted, err := units.Convert(body, unit, d.unit)
	if err != nil {
		return nil, fmt.Errorf("host: import %s: %w", path, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireTxLocked(); err != nil {
		return nil, err
	}
	inst := &ImportInstance{
		doc:      d,
		id:       d.allocID(),
		uniqueID: uuid.NewString(),
		path:     path,
		unit:     unit,
		hidden:   opts.Hidden,
		pinned:   true,
		bodies:   []kernel.Body{converted},
	}
	d.insertLocked(inst)
	return inst, nil
}

// SetPinned pins or unpins an element.
func (d *Document) SetPinned(id ElementID, pinned bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireTxLocked(); err != nil {
		return err
	}
	switch e := d.elements[id].(type) {
	case *ImportInstance:
		prev := e.pinned
		e.pinned = pinned
		d.journal = append(d.journal, func() { e.pinned = prev })
	case *DirectShapeElement:
		prev := e.pinned
		e.pinned = pinned
		d.journal = append(d.journal, func() { e.pinned = prev })
	case nil:
		return fmt.Errorf("%w: %d", ErrElementNotFound, id)
	default:
		return fmt.Errorf("%w: %T", ErrNotMovable, e)
	}
	return nil
}

// MoveElement translates an unpinned element by v.
func (d *Document) MoveElement(id ElementID, v r3.Vec) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireTxLocked(); err != nil {
		return err
	}
	switch e := d.elements[id].(type) {
	case *ImportInstance:
		if e.pinned {
			return fmt.Errorf("%w: %d", ErrPinned, id)
		}
		prev := e.translation
		e.translation = r3.Add(e.translation, v)
		d.journal = append(d.journal, func() { e.translation = prev })
	case *DirectShapeElement:
		if e.pinned {
			return fmt.Errorf("%w: %d", ErrPinned, id)
		}
		prev := e.shape
		moved := make([]kernel.Body, len(prev))
		for i, b := range prev {
			moved[i] = b.Translate(v)
		}
		e.shape = moved
		d.journal = append(d.journal, func() { e.shape = prev })
	case nil:
		return fmt.Errorf("%w: %d", ErrElementNotFound, id)
	default:
		return fmt.Errorf("%w: %T", ErrNotMovable, e)
	}
	return nil
}

// CreateDirectShape adds an empty direct shape under category. shapeID must
// be unique per application.
func (d *Document) CreateDirectShape(category *Category, appID, shapeID string) (*DirectShapeElement, error) {
	if category == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnknownCategory)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireTxLocked(); err != nil {
		return nil, err
	}
	if d.categories[categoryKey(category.Name)] != category {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category.Name)
	}
	for _, e := range d.elements {
		if ds, ok := e.(*DirectShapeElement); ok && ds.appID == appID && ds.shapeID == shapeID {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateElement, appID, shapeID)
		}
	}
	ds := &DirectShapeElement{
		doc:      d,
		id:       d.allocID(),
		uniqueID: uuid.NewString(),
		category: category,
		appID:    appID,
		shapeID:  shapeID,
	}
	d.insertLocked(ds)
	return ds, nil
}

// SetShape replaces the geometry of a direct shape.
func (d *Document) SetShape(ds *DirectShapeElement, shape []kernel.Body) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireTxLocked(); err != nil {
		return err
	}
	if d.elements[ds.id] != Element(ds) {
		return fmt.Errorf("%w: %d", ErrElementNotFound, ds.id)
	}
	prev := ds.shape
	ds.shape = append([]kernel.Body(nil), shape...)
	d.journal = append(d.journal, func() { ds.shape = prev })
	return nil
}

// Delete removes an element. Categories cannot be deleted.
func (d *Document) Delete(id ElementID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireTxLocked(); err != nil {
		return err
	}
	e, ok := d.elements[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrElementNotFound, id)
	}
	if _, isCat := e.(*Category); isCat {
		return fmt.Errorf("host: cannot delete category %d", id)
	}
	delete(d.elements, id)
	d.journal = append(d.journal, func() { d.elements[id] = e })
	return nil
}
