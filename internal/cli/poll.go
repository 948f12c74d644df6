package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/gate"
	"github.com/SmitUplenchwar2687/jobpacer/internal/poller"
	"github.com/SmitUplenchwar2687/jobpacer/internal/statuscheck"
)

// Credentials for the polled service.
const (
	EnvAccessToken = "JOBPACER_ACCESS_TOKEN"
	EnvAPIKey      = "JOBPACER_API_KEY"
)

func newPollCmd(a *app) *cobra.Command {
	var (
		statusURL      string
		acceptedFile   string
		limiterName    string
		stage          string
		interval       time.Duration
		maxAttempts    int
		noInferSuccess bool
		headers        []string
		timeout        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll a job status URL until the job finishes",
		Long: `Polls a long-running job's status endpoint until it reports success or
failure, or the attempt budget runs out. Every status request is admitted
through the named limiter first.

The status URL is given directly with --url, or read from the _links of an
"operation accepted" response saved with --accepted (status.href, else
self.href).

Credentials are read from JOBPACER_ACCESS_TOKEN (sent as a bearer token) and
JOBPACER_API_KEY (sent as x-api-key). On success the final status response is
printed as JSON.`,
		Example: `  jobpacer poll --url https://api.example.com/jobs/42 --limiter image_generation
  jobpacer poll --accepted accepted.json --stage "remove background" --interval 2s
  jobpacer poll --url https://api.example.com/jobs/42 --header X-Request-Id=abc --max-attempts 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveStatusURL(statusURL, acceptedFile)
			if err != nil {
				return err
			}

			header := statuscheck.BearerHeader(os.Getenv(EnvAccessToken), os.Getenv(EnvAPIKey))
			for _, h := range headers {
				k, v, ok := strings.Cut(h, "=")
				if !ok || k == "" {
					return fmt.Errorf("--header %q: want key=value", h)
				}
				header.Add(k, v)
			}

			opts := a.cfg.PollOptions()
			opts.Limiter = limiterName
			opts.Stage = stage
			if cmd.Flags().Changed("interval") {
				opts.Interval = interval
			}
			if cmd.Flags().Changed("max-attempts") {
				opts.MaxAttempts = maxAttempts
			}
			if noInferSuccess {
				opts.InferSuccessFromOutputs = false
			}

			clk := clock.NewRealClock()
			reg, err := a.cfg.Registry(clk)
			if err != nil {
				return err
			}
			g := gate.New(reg, clk, gate.WithLogger(a.logger))
			p := poller.New(g, clk, poller.WithLogger(a.logger))

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := p.PollUntilDone(ctx, statuscheck.New(client, target, header), opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVar(&statusURL, "url", "", "job status URL")
	cmd.Flags().StringVar(&acceptedFile, "accepted", "", "JSON file holding an operation-accepted response")
	cmd.Flags().StringVar(&limiterName, "limiter", "", "limiter gating each status request")
	cmd.Flags().StringVar(&stage, "stage", "job", "name of the operation being awaited, for messages")
	cmd.Flags().DurationVar(&interval, "interval", poller.DefaultInterval, "delay between polls (overrides config)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", poller.DefaultMaxAttempts, "maximum status requests (overrides config)")
	cmd.Flags().BoolVar(&noInferSuccess, "no-infer-success", false, "do not treat a status-less response with outputs as success")
	cmd.Flags().StringSliceVar(&headers, "header", nil, "extra request header as key=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall deadline (0 = none beyond the attempt budget)")

	return cmd
}

func resolveStatusURL(statusURL, acceptedFile string) (string, error) {
	switch {
	case statusURL != "" && acceptedFile != "":
		return "", errors.New("use only one of --url and --accepted")
	case statusURL != "":
		return statusURL, nil
	case acceptedFile != "":
		data, err := os.ReadFile(acceptedFile)
		if err != nil {
			return "", err
		}
		var accepted map[string]any
		if err := json.Unmarshal(data, &accepted); err != nil {
			return "", fmt.Errorf("parsing %s: %w", acceptedFile, err)
		}
		return statuscheck.StatusURL(accepted)
	default:
		return "", errors.New("one of --url or --accepted is required")
	}
}
