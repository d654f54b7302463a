package host

import (
	"path/filepath"
	"testing"

	"github.com/chazu/directshape/pkg/exchange"
	"github.com/chazu/directshape/pkg/kernel"
	"github.com/chazu/directshape/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newDoc(t *testing.T) *Document {
	t.Helper()
	d, err := NewDocument(units.Foot)
	require.NoError(t, err)
	return d
}

func writeBox(t *testing.T, min, max r3.Vec) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "box.stl")
	require.NoError(t, exchange.WriteFile(path, kernel.BoxMesh(min, max).Render()))
	return path
}

func importBox(t *testing.T, d *Document, min, max r3.Vec) *ImportInstance {
	t.Helper()
	e, err := d.Import(writeBox(t, min, max), ImportOptions{})
	require.NoError(t, err)
	inst, ok := e.(*ImportInstance)
	require.True(t, ok)
	return inst
}

func TestNewDocument(t *testing.T) {
	t.Run("Should reject an unknown unit", func(t *testing.T) {
		_, err := NewDocument("yd")
		assert.ErrorIs(t, err, units.ErrUnknownUnit)
	})

	t.Run("Should provide default categories", func(t *testing.T) {
		d := newDoc(t)
		assert.Len(t, d.Categories(), len(DefaultCategories))

		c, err := d.Category("generic models")
		require.NoError(t, err)
		assert.Equal(t, "Generic Models", c.Name)
		assert.NotEmpty(t, c.UniqueID())
	})

	t.Run("Should fail on an unknown category", func(t *testing.T) {
		_, err := newDoc(t).Category("Spaceships")
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})

	t.Run("Should not duplicate categories", func(t *testing.T) {
		d := newDoc(t)
		a := d.AddCategory("Casework")
		b := d.AddCategory("casework")
		assert.Same(t, a, b)
	})
}

func TestImport(t *testing.T) {
	t.Run("Should require a transaction", func(t *testing.T) {
		d := newDoc(t)
		_, err := d.Import(writeBox(t, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}), ImportOptions{})
		assert.ErrorIs(t, err, ErrNoTransaction)
	})

	t.Run("Should create a pinned solid instance", func(t *testing.T) {
		d := newDoc(t)
		d.EnsureInTransaction()
		inst := importBox(t, d, r3.Vec{}, r3.Vec{X: 1, Y: 2, Z: 3})
		require.NoError(t, d.TransactionTaskDone())

		assert.True(t, inst.Pinned())
		assert.Equal(t, units.Foot, inst.Unit())
		require.Len(t, inst.Geometry(), 1)
		assert.Equal(t, kernel.KindSolid, inst.Geometry()[0].Kind())
	})

	t.Run("Should convert the file unit", func(t *testing.T) {
		d := newDoc(t)
		d.EnsureInTransaction()
		e, err := d.Import(writeBox(t, r3.Vec{}, r3.Vec{X: 12, Y: 12, Z: 12}), ImportOptions{Unit: units.Inch, Hidden: true})
		require.NoError(t, err)
		inst := e.(*ImportInstance)
		assert.True(t, inst.Hidden())

		bb, err := inst.Geometry()[0].BoundingBox()
		require.NoError(t, err)
		assert.InDelta(t, 1.0, bb.Max.X, 1e-6)
	})

	t.Run("Should fail on a missing file", func(t *testing.T) {
		d := newDoc(t)
		d.EnsureInTransaction()
		_, err := d.Import(filepath.Join(t.TempDir(), "nope.stl"), ImportOptions{})
		assert.Error(t, err)
	})
}

func TestMoveElement(t *testing.T) {
	t.Run("Should refuse to move a pinned instance", func(t *testing.T) {
		d := newDoc(t)
		d.EnsureInTransaction()
		inst := importBox(t, d, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		assert.ErrorIs(t, d.MoveElement(inst.ID(), r3.Vec{X: 1}), ErrPinned)
	})

	t.Run("Should move an unpinned instance", func(t *testing.T) {
		d := newDoc(t)
		d.EnsureInTransaction()
		inst := importBox(t, d, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.NoError(t, d.SetPinned(inst.ID(), false))
		require.NoError(t, d.MoveElement(inst.ID(), r3.Vec{X: 10}))
		require.NoError(t, d.MoveElement(inst.ID(), r3.Vec{Y: 5}))

		assert.Equal(t, r3.Vec{X: 10, Y: 5}, inst.Translation())
		bb, err := inst.Geometry()[0].BoundingBox()
		require.NoError(t, err)
		assert.Equal(t, r3.Vec{X: 10, Y: 5}, bb.Min)
	})

	t.Run("Should fail for unknown and immovable elements", func(t *testing.T) {
		d := newDoc(t)
		d.EnsureInTransaction()
		assert.ErrorIs(t, d.MoveElement(9999, r3.Vec{X: 1}), ErrElementNotFound)

		c, err := d.Category("Mass")
		require.NoError(t, err)
		assert.ErrorIs(t, d.MoveElement(c.ID(), r3.Vec{X: 1}), ErrNotMovable)
	})
}

func TestDirectShape(t *testing.T) {
	t.Run("Should create and set a shape", func(t *testing.T) {
		d := newDoc(t)
		c, err := d.Category("Generic Models")
		require.NoError(t, err)

		d.EnsureInTransaction()
		ds, err := d.CreateDirectShape(c, "app", "shape-1")
		require.NoError(t, err)
		box := kernel.BoxMesh(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.NoError(t, d.SetShape(ds, []kernel.Body{box}))
		require.NoError(t, d.TransactionTaskDone())

		assert.Same(t, c, ds.Category())
		assert.Equal(t, "app", ds.ApplicationID())
		assert.Equal(t, "shape-1", ds.ShapeID())
		assert.Len(t, ds.Shape(), 1)
		assert.Len(t, d.DirectShapes(), 1)
	})

	t.Run("Should reject duplicate shape ids", func(t *testing.T) {
		d := newDoc(t)
		c, _ := d.Category("Mass")
		d.EnsureInTransaction()
		_, err := d.CreateDirectShape(c, "app", "same")
		require.NoError(t, err)
		_, err = d.CreateDirectShape(c, "app", "same")
		assert.ErrorIs(t, err, ErrDuplicateElement)
	})

	t.Run("Should reject a foreign category", func(t *testing.T) {
		d := newDoc(t)
		other := newDoc(t)
		c, _ := other.Category("Mass")
		d.EnsureInTransaction()
		_, err := d.CreateDirectShape(c, "app", "x")
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})
}

func TestTransactions(t *testing.T) {
	t.Run("Should commit when the outermost task is done", func(t *testing.T) {
		d := newDoc(t)
		d.EnsureInTransaction()
		d.EnsureInTransaction()
		importBox(t, d, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.NoError(t, d.TransactionTaskDone())
		assert.True(t, d.InTransaction())
		require.NoError(t, d.TransactionTaskDone())
		assert.False(t, d.InTransaction())
		assert.ErrorIs(t, d.TransactionTaskDone(), ErrNoTransaction)
	})

	t.Run("Should undo every change on rollback", func(t *testing.T) {
		d := newDoc(t)
		before := d.Len()
		c, _ := d.Category("Mass")

		d.EnsureInTransaction()
		inst := importBox(t, d, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.NoError(t, d.SetPinned(inst.ID(), false))
		require.NoError(t, d.MoveElement(inst.ID(), r3.Vec{X: 3}))
		_, err := d.CreateDirectShape(c, "app", "rolled")
		require.NoError(t, err)
		d.RollBack()

		assert.False(t, d.InTransaction())
		assert.Equal(t, before, d.Len())
		assert.True(t, inst.Pinned())
		assert.Equal(t, r3.Vec{}, inst.Translation())
	})

	t.Run("Should keep committed work across a later rollback", func(t *testing.T) {
		d := newDoc(t)
		d.EnsureInTransaction()
		inst := importBox(t, d, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
		require.NoError(t, d.TransactionTaskDone())

		d.EnsureInTransaction()
		require.NoError(t, d.Delete(inst.ID()))
		d.RollBack()

		_, err := d.Element(inst.ID())
		assert.NoError(t, err)
	})
}

func TestBinder(t *testing.T) {
	b := NewBinder()
	assert.Nil(t, b.Bind("script.lisp:3", 1, 2))

	ids, ok := b.Lookup("script.lisp:3")
	require.True(t, ok)
	assert.Equal(t, []ElementID{1, 2}, ids)

	prev := b.Bind("script.lisp:3", 5)
	assert.Equal(t, []ElementID{1, 2}, prev)
	assert.Equal(t, 1, b.Len())

	b.Unbind("script.lisp:3")
	_, ok = b.Lookup("script.lisp:3")
	assert.False(t, ok)
}
