package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/limiter"
)

func newStatusCmd(a *app) *cobra.Command {
	var (
		outputJSON bool
		detailed   bool
		serverURL  string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of every configured limiter",
		Long: `Prints the current budget of each limiter.

Without --server the limiters are built fresh from the configuration, which
shows their full starting budgets. With --server the live state is fetched
from a running "jobpacer server".`,
		Example: `  jobpacer status
  jobpacer status --detailed
  jobpacer status --server http://localhost:8080 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snaps map[string]limiter.Snapshot
			if serverURL != "" {
				var err error
				if snaps, err = fetchSnapshots(cmd.Context(), serverURL); err != nil {
					return err
				}
			} else {
				reg, err := a.cfg.Registry(clock.NewRealClock())
				if err != nil {
					return err
				}
				snaps = reg.Snapshot()
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snaps)
			}
			printStatus(out, a, snaps, detailed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include each limiter's configuration")
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of a running jobpacer server")

	return cmd
}

func fetchSnapshots(ctx context.Context, baseURL string) (map[string]limiter.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/limiters", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching limiter status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching limiter status: server returned %s", resp.Status)
	}

	var snaps map[string]limiter.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		return nil, fmt.Errorf("decoding limiter status: %w", err)
	}
	return snaps, nil
}

func printStatus(w io.Writer, a *app, snaps map[string]limiter.Snapshot, detailed bool) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "RATE LIMITING STATUS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Rate Limiting Enabled: %s\n", yesNo(a.cfg.RateLimiting.Enabled))
	fmt.Fprintf(w, "Rate Limit Wait Mode: %s\n", yesNo(a.cfg.RateLimiting.Wait))
	fmt.Fprintln(w)

	if len(snaps) == 0 {
		fmt.Fprintln(w, "No rate limiters configured.")
		return
	}

	for _, name := range sortedKeys(snaps) {
		snap := snaps[name]
		fmt.Fprintln(w, strings.ToUpper(name))
		fmt.Fprintln(w, strings.Repeat("-", 40))

		switch {
		case snap.TokenBucket != nil:
			tb := snap.TokenBucket
			fmt.Fprintln(w, "  Type: Token Bucket")
			fmt.Fprintf(w, "  Tokens Available: %.1f\n", tb.TokensAvailable)
			fmt.Fprintf(w, "  Capacity: %d\n", tb.Capacity)
			fmt.Fprintf(w, "  Refill Rate: %.2f tokens/sec\n", tb.RefillRate)
		case snap.SlidingWindow != nil:
			sw := snap.SlidingWindow
			fmt.Fprintln(w, "  Type: Sliding Window")
			fmt.Fprintf(w, "  Requests in Window: %d\n", sw.RequestsInWindow)
			fmt.Fprintf(w, "  Max Requests: %d\n", sw.MaxRequests)
			fmt.Fprintf(w, "  Time Window: %s\n", sw.Window)
		case snap.FixedWindow != nil:
			fw := snap.FixedWindow
			fmt.Fprintln(w, "  Type: Fixed Window")
			fmt.Fprintf(w, "  Request Count: %d\n", fw.RequestCount)
			fmt.Fprintf(w, "  Max Requests: %d\n", fw.MaxRequests)
			fmt.Fprintf(w, "  Time Window: %s\n", fw.Window)
			fmt.Fprintf(w, "  Window Start: %s\n", fw.WindowStart.Format(time.RFC3339))
		}

		if detailed {
			if lc, ok := a.cfg.Limiters[name]; ok {
				fmt.Fprintln(w, "  Configuration:")
				fmt.Fprintf(w, "    Algorithm: %s\n", lc.Algorithm)
				fmt.Fprintf(w, "    Max Requests: %d\n", lc.MaxRequests)
				fmt.Fprintf(w, "    Time Window: %s\n", lc.Window)
				if lc.Algorithm == limiter.KindTokenBucket {
					fmt.Fprintf(w, "    Burst: %d\n", lc.Burst)
					fmt.Fprintf(w, "    Refill Rate: %g/s\n", lc.RefillRate)
				}
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, rule)
	if !detailed {
		fmt.Fprintln(w, "Tip: use --detailed for configuration details, --json for machine-readable output")
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
