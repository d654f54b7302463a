package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/chazu/directshape/internal/logger"
	"github.com/chazu/directshape/pkg/engine"
	"github.com/chazu/directshape/pkg/host"
	"github.com/chazu/directshape/pkg/kernel/sdfx"
	"github.com/chazu/directshape/pkg/shape"
	"github.com/chazu/directshape/pkg/units"
	"github.com/spf13/cobra"
)

// RunCmd evaluates a script and registers its requests in a fresh document.
func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Evaluate a script and create its direct shapes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			log := logger.FromContext(ctx)

			hostUnit, err := units.Parse(cfg.Units.Host)
			if err != nil {
				return err
			}
			sourceUnit, err := units.Parse(cfg.Units.Source)
			if err != nil {
				return err
			}

			k := sdfx.New(sdfx.WithMeshCells(cfg.Kernel.MeshCells))
			p, err := evaluateFile(ctx, cfg, k, args[0])
			if err != nil {
				return err
			}

			doc, err := host.NewDocument(hostUnit)
			if err != nil {
				return err
			}
			f, err := shape.NewFactory(doc, k,
				shape.WithSourceUnit(sourceUnit),
				shape.WithExportDir(cfg.Export.Dir),
				shape.WithKeepExports(cfg.Export.Keep),
				shape.WithAppID(cfg.Host.AppID),
				shape.WithTolerance(cfg.Normalize.Tolerance),
			)
			if err != nil {
				return err
			}

			results := make([]*shape.DirectShape, 0, len(p.Requests))
			for _, req := range p.Requests {
				ds, err := register(cmd, f, req)
				if err != nil {
					return err
				}
				results = append(results, ds)
			}
			log.Info("run complete", "shapes", len(results), "elements", doc.Len(), "app_id", f.AppID())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CALLSITE\tCATEGORY\tELEMENT\tINSTANCE\tRESTORATION")
			for _, ds := range results {
				r := ds.Restoration
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t(%g, %g, %g)\n",
					ds.Callsite, ds.Element.Category().Name, ds.Element.ID(), ds.ImportInstance.ID(), r.X, r.Y, r.Z)
			}
			return w.Flush()
		},
	}
	return cmd
}

func register(cmd *cobra.Command, f *shape.Factory, req engine.ShapeRequest) (*shape.DirectShape, error) {
	if req.Multi {
		return f.ByGeometries(cmd.Context(), req.Callsite, req.Bodies, req.Category)
	}
	return f.ByGeometry(cmd.Context(), req.Callsite, req.Bodies[0], req.Category)
}
