package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/recorder"
	"github.com/SmitUplenchwar2687/jobpacer/internal/registry"
	"github.com/SmitUplenchwar2687/jobpacer/internal/replay"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		file         string
		speed        float64
		limiters     []string
		after        string
		before       string
		admittedOnly bool
		outputJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded admissions against the configured limiters",
		Long: `Replays admissions recorded by "jobpacer server --record" (or made by
"jobpacer generate admissions") against the limiter table in the current
configuration, to see how a different quota would have treated the same
demand.

Records are replayed in timestamp order on a virtual clock that advances by
the gaps between records. Each admission is a single fail-fast attempt.

Speed: 0 = instant, 1 = real-time, 10 = 10x, 100 = 100x`,
		Example: `  jobpacer replay --file admissions.json
  jobpacer replay --file admissions.json --config tighter.yaml --limiters auth
  jobpacer replay --file admissions.json --admitted-only --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			records, err := recorder.LoadFile(file)
			if err != nil {
				return fmt.Errorf("loading %s: %w", file, err)
			}

			filter := replay.Filter{Limiters: limiters, AdmittedOnly: admittedOnly}
			if filter.After, err = parseTimeFlag("after", after); err != nil {
				return err
			}
			if filter.Before, err = parseTimeFlag("before", before); err != nil {
				return err
			}

			vc := clock.NewVirtualClock(earliest(records))
			reg, err := registry.FromConfig(a.cfg.Limiters, vc)
			if err != nil {
				return err
			}

			r := replay.New(reg, vc, speed, filter, replay.WithLogger(a.logger))
			r.LoadRecords(records)

			out := cmd.OutOrStdout()
			if !outputJSON {
				fmt.Fprintf(out, "Replaying %s at %gx speed...\n\n", file, speed)
			}

			var results []replay.Result
			summary, err := r.Run(cmd.Context(), func(res replay.Result) {
				if outputJSON {
					results = append(results, res)
					return
				}
				status := "ADMIT"
				if !res.Admitted {
					status = "DENY "
				}
				changed := ""
				if res.Changed {
					changed = " (changed)"
				}
				fmt.Fprintf(out, "  [%s] %s %s cost=%d%s\n",
					status,
					res.Record.Timestamp.Format("15:04:05.000"),
					res.Record.Limiter,
					res.Record.Cost,
					changed)
			})
			if err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"results": results,
					"summary": summary,
				})
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "--- Replay Summary ---")
			fmt.Fprintf(out, "  Total records:  %d\n", summary.TotalRecords)
			fmt.Fprintf(out, "  Filtered:       %d\n", summary.Filtered)
			fmt.Fprintf(out, "  Replayed:       %d\n", summary.Replayed)
			fmt.Fprintf(out, "  Admitted:       %d\n", summary.Admitted)
			fmt.Fprintf(out, "  Denied:         %d\n", summary.Denied)
			fmt.Fprintf(out, "  Changed:        %d\n", summary.Changed)
			fmt.Fprintf(out, "  Virtual time:   %s\n", summary.Duration)
			fmt.Fprintf(out, "  Wall time:      %s\n", summary.WallDuration.Round(time.Millisecond))

			if len(summary.PerLimiter) > 1 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "  Per limiter:")
				for _, name := range sortedKeys(summary.PerLimiter) {
					ls := summary.PerLimiter[name]
					fmt.Fprintf(out, "    %s: %d admitted, %d denied, %d changed\n", name, ls.Admitted, ls.Denied, ls.Changed)
				}
			}

			if summary.Denied > 0 && summary.Admitted > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, strings.Repeat("=", 50))
				denyRate := float64(summary.Denied) / float64(summary.Replayed) * 100
				fmt.Fprintf(out, "Deny rate: %.1f%% (%d/%d admissions denied)\n", denyRate, summary.Denied, summary.Replayed)
				fmt.Fprintln(out, strings.Repeat("=", 50))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to recorded admissions JSON file (required)")
	cmd.Flags().Float64Var(&speed, "speed", 0, "replay speed (0=instant, 1=real-time, 10=10x)")
	cmd.Flags().StringSliceVar(&limiters, "limiters", nil, "only replay these limiters (comma-separated)")
	cmd.Flags().StringVar(&after, "after", "", "only replay records after this RFC 3339 time")
	cmd.Flags().StringVar(&before, "before", "", "only replay records before this RFC 3339 time")
	cmd.Flags().BoolVar(&admittedOnly, "admitted-only", false, "skip records the live gate denied")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}

func parseTimeFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

// earliest returns the first record time, so fixed windows anchor where
// the recording began.
func earliest(records []recorder.AdmissionRecord) time.Time {
	var first time.Time
	for _, r := range records {
		if first.IsZero() || r.Timestamp.Before(first) {
			first = r.Timestamp
		}
	}
	if first.IsZero() {
		return time.Now().Truncate(time.Second)
	}
	return first
}
