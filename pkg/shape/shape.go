// Package shape registers script geometry in a host document as direct
// shapes. Bodies are converted to the host unit, recentered, exported to
// STL, imported back, moved to their original placement and finally wrapped
// in a DirectShapeElement bound to the producing call site.
package shape

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chazu/directshape/internal/logger"
	"github.com/chazu/directshape/pkg/exchange"
	"github.com/chazu/directshape/pkg/host"
	"github.com/chazu/directshape/pkg/kernel"
	"github.com/chazu/directshape/pkg/normalize"
	"github.com/chazu/directshape/pkg/tessellate"
	"github.com/chazu/directshape/pkg/units"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrNilImportInstance = errors.New("shape: nil import instance")
	ErrNotImportInstance = errors.New("shape: imported element is not an import instance")
	ErrNoGeometry        = errors.New("shape: import instance has no concrete geometry")
)

// DirectShape is the outcome of one pipeline run.
type DirectShape struct {
	Callsite string
	// Path is the exported interchange file. It is empty for shapes built
	// from an existing import instance.
	Path           string
	ImportInstance *host.ImportInstance
	Element        *host.DirectShapeElement
	// Restoration is the translation applied to the import instance.
	Restoration r3.Vec
}

// Option configures a Factory.
type Option func(*Factory)

// WithSourceUnit sets the unit script geometry is authored in. The default
// is the document unit.
func WithSourceUnit(u units.Unit) Option {
	return func(f *Factory) {
		if u != "" {
			f.source = u
		}
	}
}

// WithExportDir sets the directory interchange files are written to.
func WithExportDir(dir string) Option {
	return func(f *Factory) {
		if dir != "" {
			f.exportDir = dir
		}
	}
}

// WithKeepExports leaves exported files on disk after import.
func WithKeepExports(keep bool) Option {
	return func(f *Factory) { f.keep = keep }
}

// WithAppID sets the application id stamped on created shapes.
func WithAppID(id string) Option {
	return func(f *Factory) {
		if id != "" {
			f.appID = id
		}
	}
}

// WithTolerance sets the zero-length tolerance used for recentering.
func WithTolerance(tol float64) Option {
	return func(f *Factory) { f.normalizer = normalize.New(tol) }
}

// WithBinder shares a call-site binder between factories.
func WithBinder(b *host.Binder) Option {
	return func(f *Factory) {
		if b != nil {
			f.binder = b
		}
	}
}

// Factory runs the shape pipeline against one document. Pipeline runs are
// serialized because they share the document transaction.
type Factory struct {
	mu sync.Mutex

	doc        *host.Document
	binder     *host.Binder
	normalizer *normalize.Normalizer
	tess       *tessellate.Tessellator

	source    units.Unit
	exportDir string
	keep      bool
	appID     string
}

// NewFactory returns a factory creating shapes in doc. mesher tessellates
// kernel-native bodies and may be nil when only mesh bodies are used.
func NewFactory(doc *host.Document, mesher tessellate.Mesher, opts ...Option) (*Factory, error) {
	if doc == nil {
		return nil, errors.New("shape: nil document")
	}
	f := &Factory{
		doc:        doc,
		binder:     host.NewBinder(),
		normalizer: normalize.New(0),
		tess:       tessellate.New(mesher),
		source:     doc.Unit(),
		exportDir:  os.TempDir(),
		appID:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if !f.source.Valid() {
		return nil, fmt.Errorf("%w: %q", units.ErrUnknownUnit, f.source)
	}
	return f, nil
}

// AppID returns the application id stamped on created shapes.
func (f *Factory) AppID() string { return f.appID }

// Binder returns the call-site binder.
func (f *Factory) Binder() *host.Binder { return f.binder }

// ByGeometry registers a single body under category using the centroid
// recentering policy.
func (f *Factory) ByGeometry(ctx context.Context, callsite string, body kernel.Body, category string) (*DirectShape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cat, err := f.doc.Category(category)
	if err != nil {
		return nil, err
	}
	converted, err := units.Convert(body, f.source, f.doc.Unit())
	if err != nil {
		return nil, fmt.Errorf("shape: %s: %w", callsite, err)
	}
	res, err := f.normalizer.Normalize(converted)
	if err != nil {
		return nil, fmt.Errorf("shape: %s: %w", callsite, err)
	}
	return f.roundTrip(ctx, callsite, cat, []kernel.Body{res.Geometry}, res.Restoration)
}

// ByGeometries registers bodies as one shape using the bounding box
// recentering policy. All bodies are exported to one file.
func (f *Factory) ByGeometries(ctx context.Context, callsite string, bodies []kernel.Body, category string) (*DirectShape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cat, err := f.doc.Category(category)
	if err != nil {
		return nil, err
	}
	converted, err := units.ConvertAll(bodies, f.source, f.doc.Unit())
	if err != nil {
		return nil, fmt.Errorf("shape: %s: %w", callsite, err)
	}
	res, err := f.normalizer.NormalizeAll(converted)
	if err != nil {
		return nil, fmt.Errorf("shape: %s: %w", callsite, err)
	}
	return f.roundTrip(ctx, callsite, cat, res.Geometry, res.Restoration)
}

// ByImportInstance wraps the geometry of an existing import instance in a
// direct shape. The instance itself is left in place and is not bound.
func (f *Factory) ByImportInstance(ctx context.Context, callsite string, inst *host.ImportInstance, category string) (*DirectShape, error) {
	if inst == nil {
		return nil, ErrNilImportInstance
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cat, err := f.doc.Category(category)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.doc.EnsureInTransaction()
	ds, err := f.attach(callsite, cat, inst)
	if err != nil {
		f.doc.RollBack()
		return nil, err
	}
	if err := f.commit(ctx, callsite, ds.Element.ID()); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("direct shape created from import instance",
		"callsite", callsite, "instance", inst.ID(), "element", ds.Element.ID(), "category", cat.Name)
	return ds, nil
}

// roundTrip exports normalized bodies, imports them back and restores
// their placement.
func (f *Factory) roundTrip(
	ctx context.Context,
	callsite string,
	cat *host.Category,
	bodies []kernel.Body,
	restoration r3.Vec,
) (*DirectShape, error) {
	log := logger.FromContext(ctx).With("callsite", callsite)

	names := make([]string, len(bodies))
	for i := range bodies {
		names[i] = callsite
		if len(bodies) > 1 {
			names[i] = fmt.Sprintf("%s/%d", callsite, i)
		}
	}
	meshes, err := f.tess.TessellateAll(bodies, names)
	if err != nil {
		return nil, fmt.Errorf("shape: %s: %w", callsite, err)
	}
	merged := tessellate.Merge(meshes)

	path := filepath.Join(f.exportDir, uuid.NewString()+".stl")
	if err := exchange.WriteFile(path, merged); err != nil {
		return nil, fmt.Errorf("shape: %s: %w", callsite, err)
	}
	if !f.keep {
		defer func() {
			if err := os.Remove(path); err != nil {
				log.Warn("failed to remove export file", "path", path, "error", err)
			}
		}()
	}
	log.Debug("exported", "path", path, "triangles", merged.TriangleCount(), "restoration", restoration)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.doc.EnsureInTransaction()
	ds, err := f.place(callsite, cat, path, restoration)
	if err != nil {
		f.doc.RollBack()
		return nil, err
	}
	if err := f.commit(ctx, callsite, ds.ImportInstance.ID(), ds.Element.ID()); err != nil {
		return nil, err
	}
	log.Info("direct shape created",
		"element", ds.Element.ID(), "instance", ds.ImportInstance.ID(), "category", cat.Name)
	return ds, nil
}

// place imports path, moves the instance by restoration and attaches a
// direct shape. The caller holds the transaction.
func (f *Factory) place(callsite string, cat *host.Category, path string, restoration r3.Vec) (*DirectShape, error) {
	el, err := f.doc.Import(path, host.ImportOptions{Unit: f.doc.Unit()})
	if err != nil {
		return nil, fmt.Errorf("shape: %s: %w", callsite, err)
	}
	inst, ok := el.(*host.ImportInstance)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotImportInstance, el)
	}

	if !kernel.IsZeroLength(restoration, f.normalizer.Tolerance()) {
		if err := f.doc.SetPinned(inst.ID(), false); err != nil {
			return nil, fmt.Errorf("shape: %s: unpin: %w", callsite, err)
		}
		if err := f.doc.MoveElement(inst.ID(), restoration); err != nil {
			return nil, fmt.Errorf("shape: %s: move: %w", callsite, err)
		}
	}

	ds, err := f.attach(callsite, cat, inst)
	if err != nil {
		return nil, err
	}
	ds.Path = path
	ds.Restoration = restoration
	return ds, nil
}

// attach creates a direct shape holding the concrete geometry of inst.
func (f *Factory) attach(callsite string, cat *host.Category, inst *host.ImportInstance) (*DirectShape, error) {
	geom := concreteGeometry(inst.Geometry())
	if len(geom) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoGeometry, inst.ID())
	}
	el, err := f.doc.CreateDirectShape(cat, f.appID, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("shape: %s: %w", callsite, err)
	}
	if err := f.doc.SetShape(el, geom); err != nil {
		return nil, fmt.Errorf("shape: %s: %w", callsite, err)
	}
	return &DirectShape{Callsite: callsite, ImportInstance: inst, Element: el}, nil
}

// commit deletes whatever callsite produced before, ends the transaction
// and binds ids to callsite.
func (f *Factory) commit(ctx context.Context, callsite string, ids ...host.ElementID) error {
	log := logger.FromContext(ctx)
	prev, _ := f.binder.Lookup(callsite)
	for _, id := range prev {
		if err := f.doc.Delete(id); err != nil {
			if errors.Is(err, host.ErrElementNotFound) {
				continue
			}
			f.doc.RollBack()
			return fmt.Errorf("shape: %s: replace %d: %w", callsite, id, err)
		}
		log.Debug("replaced bound element", "callsite", callsite, "element", id)
	}
	if err := f.doc.TransactionTaskDone(); err != nil {
		return fmt.Errorf("shape: %s: %w", callsite, err)
	}
	f.binder.Bind(callsite, ids...)
	return nil
}

// concreteGeometry keeps solids and non-empty meshes.
func concreteGeometry(bodies []kernel.Body) []kernel.Body {
	var out []kernel.Body
	for _, b := range bodies {
		if b == nil {
			continue
		}
		switch b.Kind() {
		case kernel.KindSolid, kernel.KindMesh:
		default:
			continue
		}
		if m, ok := b.(*kernel.TriangleMesh); ok && m.TriangleCount() == 0 {
			continue
		}
		out = append(out, b)
	}
	return out
}
