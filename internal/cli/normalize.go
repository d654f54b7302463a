package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/chazu/directshape/pkg/kernel"
	"github.com/chazu/directshape/pkg/kernel/sdfx"
	"github.com/chazu/directshape/pkg/normalize"
	"github.com/chazu/directshape/pkg/units"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

// NormalizeCmd prints the recentering each request of a script would get,
// without touching a document.
func NormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <script>",
		Short: "Show the restoration vector of every request in a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)

			from, err := units.Parse(cfg.Units.Source)
			if err != nil {
				return err
			}
			to, err := units.Parse(cfg.Units.Host)
			if err != nil {
				return err
			}

			k := sdfx.New(sdfx.WithMeshCells(cfg.Kernel.MeshCells))
			p, err := evaluateFile(ctx, cfg, k, args[0])
			if err != nil {
				return err
			}

			n := normalize.New(cfg.Normalize.Tolerance)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "CALLSITE\tPOLICY\tBODIES\tTRANSLATED\tRESTORATION (%s)\n", to)
			for _, req := range p.Requests {
				bodies, err := units.ConvertAll(req.Bodies, from, to)
				if err != nil {
					return fmt.Errorf("%s: %w", req.Callsite, err)
				}

				policy := "centroid"
				var restoration r3.Vec
				var translated bool
				if req.Multi {
					policy = "bounding-box"
					res, err := n.NormalizeAll(bodies)
					if err != nil {
						return fmt.Errorf("%s: %w", req.Callsite, err)
					}
					restoration, translated = res.Restoration, res.Translated
				} else {
					res, err := n.Normalize(bodies[0])
					if err != nil {
						return fmt.Errorf("%s: %w", req.Callsite, err)
					}
					restoration, translated = res.Restoration, res.Translated
					if bodies[0].Kind() != kernel.KindSolid {
						policy = "pass-through"
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t(%g, %g, %g)\n",
					req.Callsite, policy, len(bodies), translated, restoration.X, restoration.Y, restoration.Z)
			}
			return w.Flush()
		},
	}
}
