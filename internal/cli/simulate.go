package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/gate"
	"github.com/SmitUplenchwar2687/jobpacer/internal/registry"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		limiters    []string
		requests    int
		cost        int
		fastForward time.Duration
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Burst admissions against configured limiters on a virtual clock",
		Long: `Sends a batch of fail-fast admissions to each selected limiter on a
virtual clock, optionally fast-forwards time, then sends another batch to
show how the budget recovers. Nothing waits in real time.`,
		Example: `  jobpacer simulate --limiters auth --requests 8
  jobpacer simulate --limiters image_generation --requests 25 --fast-forward 30s
  jobpacer simulate --requests 5 --cost 2 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			vc := clock.NewVirtualClock(time.Now().Truncate(time.Second))
			reg, err := registry.FromConfig(a.cfg.Limiters, vc)
			if err != nil {
				return err
			}
			if len(limiters) == 0 {
				limiters = reg.Names()
			}
			for _, name := range limiters {
				if _, ok := reg.Lookup(name); !ok {
					return fmt.Errorf("no limiter named %q is configured", name)
				}
			}

			g := gate.New(reg, vc, gate.WithLogger(a.logger))
			result := runSimulation(g, vc, limiters, requests, cost, fastForward)

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printSimulation(out, &result)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&limiters, "limiters", nil, "limiters to exercise (default: all configured)")
	cmd.Flags().IntVar(&requests, "requests", 15, "admissions per limiter per batch")
	cmd.Flags().IntVar(&cost, "cost", 1, "units per admission")
	cmd.Flags().DurationVar(&fastForward, "fast-forward", 0, "virtual time to skip between batches")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}

// SimulationResult captures the full output of a simulation run.
type SimulationResult struct {
	Limiters    []string           `json:"limiters"`
	Requests    int                `json:"requests"`
	Cost        int                `json:"cost"`
	FastForward string             `json:"fast_forward,omitempty"`
	Batches     []BatchResult      `json:"batches"`
	Summary     map[string]Summary `json:"summary"`
}

// BatchResult captures the decisions of one batch.
type BatchResult struct {
	Label     string           `json:"label"`
	Time      string           `json:"time"`
	Decisions []DecisionRecord `json:"decisions"`
}

type DecisionRecord struct {
	Limiter    string        `json:"limiter"`
	Admitted   bool          `json:"admitted"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Summary aggregates decisions per limiter.
type Summary struct {
	TotalRequests int `json:"total_requests"`
	Admitted      int `json:"admitted"`
	Denied        int `json:"denied"`
}

func runSimulation(g *gate.Gate, vc *clock.VirtualClock, limiters []string, requests, cost int, fastForward time.Duration) SimulationResult {
	result := SimulationResult{
		Limiters: limiters,
		Requests: requests,
		Cost:     cost,
		Summary:  make(map[string]Summary),
	}

	batch := func(label string) BatchResult {
		b := BatchResult{Label: label, Time: vc.Now().Format(time.RFC3339)}
		for i := 0; i < requests; i++ {
			for _, name := range limiters {
				d := DecisionRecord{Limiter: name, Admitted: true}
				if err := g.Admit(context.Background(), name, false, cost); err != nil {
					d.Admitted = false
					d.Error = err.Error()
					var rle *gate.RateLimitError
					if errors.As(err, &rle) {
						d.RetryAfter = rle.RetryAfter
					}
				}
				b.Decisions = append(b.Decisions, d)

				s := result.Summary[name]
				s.TotalRequests++
				if d.Admitted {
					s.Admitted++
				} else {
					s.Denied++
				}
				result.Summary[name] = s
			}
		}
		return b
	}

	result.Batches = append(result.Batches, batch("Initial burst"))
	if fastForward > 0 {
		vc.Advance(fastForward)
		result.FastForward = fastForward.String()
		result.Batches = append(result.Batches, batch(fmt.Sprintf("After fast-forward %s", fastForward)))
	}
	return result
}

func printSimulation(w io.Writer, r *SimulationResult) {
	fmt.Fprintln(w, "=== jobpacer simulation ===")
	fmt.Fprintln(w)

	for _, batch := range r.Batches {
		fmt.Fprintf(w, "--- %s (at %s) ---\n", batch.Label, batch.Time)
		for i, d := range batch.Decisions {
			if d.Admitted {
				fmt.Fprintf(w, "  #%03d [ADMIT] %s\n", i+1, d.Limiter)
			} else {
				fmt.Fprintf(w, "  #%03d [DENY ] %s retry after %s\n", i+1, d.Limiter, d.RetryAfter.Round(time.Millisecond))
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "--- Summary ---")
	for _, name := range sortedKeys(r.Summary) {
		s := r.Summary[name]
		fmt.Fprintf(w, "  %s: %d total, %d admitted, %d denied\n", name, s.TotalRequests, s.Admitted, s.Denied)
	}

	if r.FastForward != "" {
		fmt.Fprintf(w, "\nFast-forwarded %s of virtual time\n", r.FastForward)
	}

	if len(r.Batches) > 1 && deniedIn(r.Batches[0]) && admittedIn(r.Batches[1]) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.Repeat("=", 50))
		fmt.Fprintln(w, "Budget recovered: admissions denied in the first")
		fmt.Fprintln(w, "burst were admitted again after the fast-forward.")
		fmt.Fprintln(w, strings.Repeat("=", 50))
	}
}

func deniedIn(b BatchResult) bool {
	for _, d := range b.Decisions {
		if !d.Admitted {
			return true
		}
	}
	return false
}

func admittedIn(b BatchResult) bool {
	for _, d := range b.Decisions {
		if d.Admitted {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
