// Command diag compares the Kepler model against SGP4 for the satellites in
// a TLE file and prints how far the two drift apart over time.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tle"
)

var (
	hours float64
	step  time.Duration
	limit int
)

var rootCmd = &cobra.Command{
	Use:          "diag FILE",
	Short:        "Kepler vs SGP4 drift per satellite",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkWindow(hours, step); err != nil {
			return err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		entries, err := tle.ParseCatalog(f, logger)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d TLE entries\n", len(entries))
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("NORAD", "NAME", "AT EPOCH (km)", "MEAN (km)", "MAX (km)", "AFTER (h)")
		for _, e := range entries {
			row, err := drift(e, hours, step)
			if err != nil {
				t.Row(strconv.Itoa(e.CatalogNumber), e.Name, "error: "+err.Error(), "", "", "")
				continue
			}
			t.Row(append([]string{strconv.Itoa(e.CatalogNumber), e.Name}, row...)...)
		}
		fmt.Println(t.Render())
		return nil
	},
}

// maxSamples bounds the comparisons per satellite.
const maxSamples = 1_000_000

// checkWindow validates the sampling window.
func checkWindow(hours float64, step time.Duration) error {
	if step <= 0 {
		return fmt.Errorf("--step must be positive, got %v", step)
	}
	if !(hours >= 0) || math.IsInf(hours, 1) {
		return fmt.Errorf("--hours must be a finite value >= 0, got %v", hours)
	}
	if n := hours * float64(time.Hour) / float64(step); n > maxSamples {
		return fmt.Errorf("--hours %v at --step %v is %.0f samples per satellite, limit %d", hours, step, n, maxSamples)
	}
	return nil
}

// drift samples both models from the element epoch forward and returns the
// separation at epoch, its mean and maximum, and when the maximum occurred.
// The window must have passed checkWindow.
func drift(e tle.TLE, hours float64, step time.Duration) ([]string, error) {
	sgp4, err := propagation.NewSGP4(e)
	if err != nil {
		return nil, err
	}
	kepler := propagation.NewKepler(e)

	var seps, offsets []float64
	end := e.Epoch.Add(time.Duration(hours * float64(time.Hour)))
	for at := e.Epoch; !at.After(end); at = at.Add(step) {
		ref, err := sgp4.ECI(at)
		if err != nil {
			return nil, err
		}
		seps = append(seps, kepler.Position(at).Sub(ref).Norm())
		offsets = append(offsets, at.Sub(e.Epoch).Hours())
	}

	i := floats.MaxIdx(seps)
	return []string{
		fmt.Sprintf("%.1f", seps[0]),
		fmt.Sprintf("%.1f", stat.Mean(seps, nil)),
		fmt.Sprintf("%.1f", seps[i]),
		fmt.Sprintf("%.1f", offsets[i]),
	}, nil
}

func main() {
	rootCmd.Flags().Float64Var(&hours, "hours", 24, "comparison window after each epoch")
	rootCmd.Flags().DurationVar(&step, "step", 10*time.Minute, "sampling interval")
	rootCmd.Flags().IntVar(&limit, "limit", 10, "compare at most this many satellites (0 = all)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
