package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/gate"
	jplog "github.com/SmitUplenchwar2687/jobpacer/internal/log"
	"github.com/SmitUplenchwar2687/jobpacer/internal/recorder"
	"github.com/SmitUplenchwar2687/jobpacer/internal/server"
)

func newServerCmd(a *app) *cobra.Command {
	var (
		addr       string
		recordFile string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the admission gate over HTTP",
		Long: `Starts an HTTP server exposing the configured limiters.

Endpoints:
  GET  /                     Server info and current time
  GET  /health               Health check
  GET  /api/limiters         Snapshot of every limiter
  GET  /api/limiters/{name}  Snapshot of one limiter
  POST /api/admit/{name}     Admit through the gate (?wait=true|false&n=1)
  GET  /api/admissions       Recorded admissions (with --record)
  GET  /dashboard/           Live dashboard
  WS   /ws                   Stream of admission events`,
		Example: `  jobpacer server
  jobpacer server --addr :9090 --config limits.yaml
  jobpacer server --record admissions.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Server.Addr
			}

			clk := clock.NewRealClock()
			reg, err := a.cfg.Registry(clk)
			if err != nil {
				return err
			}

			hub := server.NewHub(a.logger)
			gateOpts := []gate.Option{
				gate.WithLogger(a.logger),
				gate.WithObserver(hub.Observer()),
			}
			srvOpts := []server.Option{
				server.WithLogger(a.logger),
				server.WithHub(hub),
				server.WithWait(a.cfg.RateLimiting.Wait),
				server.WithInboundLimit(a.cfg.Server.InboundRPS, a.cfg.Server.InboundBurst),
				server.WithTrustedProxy(a.cfg.Server.TrustProxy),
			}

			var rec *recorder.Recorder
			if recordFile != "" {
				rec = recorder.New(nil, recorder.WithLogger(a.logger))
				gateOpts = append(gateOpts, gate.WithObserver(rec.Observer()))
				srvOpts = append(srvOpts, server.WithRecorder(rec))
			}

			g := gate.New(reg, clk, gateOpts...)
			srv := server.New(addr, g, clk, srvOpts...)

			a.logger.Info("starting server",
				zap.String(jplog.KeyAddr, addr),
				zap.Strings("limiters", reg.Names()),
				zap.Bool("wait", a.cfg.RateLimiting.Wait),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Dashboard: http://localhost%s/dashboard/\n", addr)

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				a.logger.Info("shutting down")
				return shutdown(srv, rec, recordFile, 5*time.Second, a.logger)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on (overrides config)")
	cmd.Flags().StringVar(&recordFile, "record", "", "record admissions to a JSON file (exported on shutdown)")

	return cmd
}

// shutdown drains the server, then exports rec to path (when rec is set), so
// admissions that completed during shutdown are in the file.
func shutdown(srv *server.Server, rec *recorder.Recorder, path string, timeout time.Duration, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	if rec == nil {
		return err
	}

	rec.Close()
	logger.Info("exporting admissions", zap.Int("records", rec.Len()), zap.String("file", path))
	if xerr := rec.ExportFile(path); xerr != nil {
		logger.Error("exporting admissions", zap.Error(xerr))
		if err == nil {
			err = fmt.Errorf("exporting admissions to %s: %w", path, xerr)
		}
	}
	return err
}
