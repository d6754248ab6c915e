package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tui"
)

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Print satellite positions at one instant",
	Long: `Propagate the selected satellites to --at (default now) and print their
sub-satellite points. With --lat and --lon, or a configured observer, the
look angles from that observer are included.

Examples:
  skypass position --tle stations.txt --norad 25544
  skypass position --norad 25544 --lat 40.7 --lon -74 --output json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := loadEntries(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		at, err := timeFlag(cmd)
		if err != nil {
			return err
		}
		obs, err := observerFlags(cmd)
		if err != nil {
			return err
		}

		pool := propagation.NewWorkerPool(cfg.Propagation.Workers, cfg.ModelFactory(), logger)
		results, _, failed := pool.PropagateBatch(cmd.Context(), entries, at, &obs)
		if failed > 0 {
			logger.Warn("some satellites failed to propagate", "failed", failed)
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(tui.HelpStyle).
			Headers("NORAD", "NAME", "LAT", "LON", "ALT (km)", "AZ", "EL", "RANGE (km)")
		for _, r := range results {
			topo, ok := r.Position.(propagation.Topocentric)
			if !ok {
				continue
			}
			g, l := topo.Geodetic, topo.Look
			t.Row(
				strconv.Itoa(r.NORADID), r.Name,
				fmt.Sprintf("%.3f", g.LatDeg), fmt.Sprintf("%.3f", g.LonDeg), fmt.Sprintf("%.1f", g.AltKm),
				fmt.Sprintf("%.1f", l.AzimuthDeg), fmt.Sprintf("%.1f", l.ElevationDeg), fmt.Sprintf("%.0f", l.RangeKm),
			)
		}
		fmt.Println(tui.TitleStyle.Render(at.Format("2006-01-02 15:04:05 UTC")))
		fmt.Println(t.Render())
		return nil
	},
}

func init() {
	addCatalogFlags(positionCmd)
	positionCmd.Flags().StringP("output", "o", "table", "output format: table or json")
}
