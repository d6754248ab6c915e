package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/star/skypass/internal/config"
	"github.com/star/skypass/internal/passes"
	"github.com/star/skypass/internal/tui"
)

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "Predict upcoming passes over an observer",
	Long: `Search forward from --at (default now) for passes of the selected
satellites that reach --min-elevation within --hours.

Examples:
  skypass passes --norad 25544 --lat 40.7 --lon -74
  skypass passes --tle stations.txt --count 3 --min-elevation 30 --output json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := loadEntries(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		start, err := timeFlag(cmd)
		if err != nil {
			return err
		}
		obs, err := observerFlags(cmd)
		if err != nil {
			return err
		}

		opts := cfg.PassOptions()
		if cmd.Flags().Changed("min-elevation") {
			opts.MinElevation, _ = cmd.Flags().GetFloat64("min-elevation")
		}
		if cmd.Flags().Changed("hours") {
			opts.MaxHours, _ = cmd.Flags().GetFloat64("hours")
		}
		if opts.MaxHours <= 0 || opts.MaxHours > config.MaxSearchHours {
			return fmt.Errorf("--hours must be in (0, %d]", config.MaxSearchHours)
		}
		count := cfg.Passes.MaxPasses
		if cmd.Flags().Changed("count") {
			count, _ = cmd.Flags().GetInt("count")
		}

		results := passes.Predict(cmd.Context(), passes.Request{
			Observer:        obs,
			Entries:         entries,
			Start:           start,
			Options:         opts,
			MaxPasses:       count,
			GroundTrackStep: cfg.Passes.GroundTrackStep,
			Model:           cfg.ModelFactory(),
		})

		output, _ := cmd.Flags().GetString("output")
		if output == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		fmt.Println(passTable(results))
		return nil
	},
}

func init() {
	addCatalogFlags(passesCmd)
	passesCmd.Flags().Int("count", 5, "passes per satellite (default from config)")
	passesCmd.Flags().Float64("min-elevation", 10, "minimum peak elevation in degrees (default from config)")
	passesCmd.Flags().Float64("hours", 48, "search window in hours (default from config)")
	passesCmd.Flags().StringP("output", "o", "table", "output format: table or json")
}

func passTable(results []passes.SatellitePasses) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tui.HelpStyle).
		Headers("NORAD", "NAME", "RISE (UTC)", "AZ", "PEAK (UTC)", "MAX EL", "SET (UTC)", "AZ", "DURATION")

	for _, sp := range results {
		if sp.Error != "" {
			t.Row(strconv.Itoa(sp.NORADID), sp.Name, tui.ErrorStyle.Render(sp.Error), "", "", "", "", "", "")
			continue
		}
		if len(sp.Passes) == 0 {
			t.Row(strconv.Itoa(sp.NORADID), sp.Name, "no passes", "", "", "", "", "", "")
			continue
		}
		for _, p := range sp.Passes {
			t.Row(
				strconv.Itoa(sp.NORADID), sp.Name,
				p.Rise.UTC().Format(time.DateTime), fmt.Sprintf("%.0f°", p.RiseAzimuth),
				p.Peak.UTC().Format(time.TimeOnly), fmt.Sprintf("%.1f°", p.MaxElevation),
				p.Set.UTC().Format(time.TimeOnly), fmt.Sprintf("%.0f°", p.SetAzimuth),
				p.Duration().Round(time.Second).String(),
			)
		}
	}
	return t.Render()
}
