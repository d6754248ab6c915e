package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/star/skypass/internal/passes"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tui"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Follow one satellite live",
	Long: `Show the live position of one satellite and its next pass over the
observer. When stdout is not a terminal a single snapshot is printed.

Example:
  skypass track --norad 25544 --lat 40.7 --lon -74`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := loadEntries(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		if len(entries) != 1 {
			return errors.New("track needs exactly one satellite; select it with --norad")
		}
		sat := entries[0]
		obs, err := observerFlags(cmd)
		if err != nil {
			return err
		}
		model, err := cfg.ModelFactory()(sat)
		if err != nil {
			return fmt.Errorf("initializing model for %s: %w", sat.Name, err)
		}

		if !term.IsTerminal(int(os.Stdout.Fd())) {
			now := time.Now().UTC()
			pos, err := propagation.PositionAt(model, now, &obs)
			if err != nil {
				return err
			}
			topo := pos.(propagation.Topocentric)
			fmt.Printf("%s (NORAD %d) at %s\n", sat.Name, sat.CatalogNumber, now.Format(time.RFC3339))
			fmt.Printf("  sub-point %.3f, %.3f  alt %.1f km\n", topo.Geodetic.LatDeg, topo.Geodetic.LonDeg, topo.Geodetic.AltKm)
			fmt.Printf("  az %.1f  el %.1f  range %.0f km\n", topo.Look.AzimuthDeg, topo.Look.ElevationDeg, topo.Look.RangeKm)
			if p, ok := passes.FindNextPassWith(model, obs, now, cfg.PassOptions(), nil); ok {
				fmt.Println("  next pass", tui.FormatPass(p, now))
			} else {
				fmt.Println("  no pass in the search window")
			}
			return nil
		}

		m := tui.NewTrackModel(sat, model, obs, cfg.PassOptions(), nil)
		if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	},
}

func init() {
	addCatalogFlags(trackCmd)
	trackCmd.Flags().MarkHidden("at")
}
