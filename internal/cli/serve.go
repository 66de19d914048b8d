package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/quickclaw/quickclaw/internal/locator"
	"github.com/quickclaw/quickclaw/internal/reconcile"
	"github.com/quickclaw/quickclaw/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	serveHost    string
	servePort    int
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard page and API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadAppFn()
	if err != nil {
		return err
	}
	defer a.Close()
	setupLogging(a.cfg.LogLevel)

	host, port := a.cfg.DashboardHost, a.cfg.DashboardPort
	if serveHost != "" {
		host = serveHost
	}
	if servePort > 0 {
		port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !serveNoWatch {
		id, err := a.profileID(profileFlag)
		if err != nil {
			return err
		}
		if err := watchDrift(ctx, a.locations(id)); err != nil {
			slog.Warn("config drift watcher disabled", "error", err)
		}
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           (&api{app: a}).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("dashboard listening", "addr", srv.Addr, "version", version, "cli", a.cli.String())
		errCh <- srv.ListenAndServe()
	}()
	if !jsonOutput {
		printHeader(cmd.OutOrStdout(), "🌐 QuickClaw Dashboard")
		fmt.Fprintf(cmd.OutOrStdout(), "Dashboard: http://%s/\n", srv.Addr)
		fmt.Fprintf(cmd.OutOrStdout(), "API:       http://%s/api/ping\n", srv.Addr)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// driftQuiet is how long config files must stay unchanged before a drift
// check runs, so half-finished writes are not reconciled.
var driftQuiet = 750 * time.Millisecond

// driftPatch only tops up gateway.mode in files that exist and parse.
var driftPatch = reconcile.Patch{LocalMode: true, EnsureOnly: true, ExistingOnly: true}

// watchDrift re-asserts gateway.mode=local whenever a config file is edited
// outside the dashboard. Re-applying an unchanged document writes nothing,
// so the watcher does not trigger itself.
func watchDrift(ctx context.Context, locs []locator.Location) error {
	w := watcher.New(locator.Paths(locs), slog.Default())
	if err := w.Start(ctx); err != nil {
		return err
	}
	go driftLoop(ctx, w.Events(), locs, driftQuiet, logDrift)
	return nil
}

// driftLoop reconciles once events have been quiet for the given period.
func driftLoop(ctx context.Context, events <-chan watcher.DriftEvent, locs []locator.Location, quiet time.Duration, report func(reconcile.Result)) {
	timer := time.NewTimer(quiet)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			timer.Reset(quiet)
		case <-timer.C:
			report(reconcile.Apply(locs, driftPatch))
		}
	}
}

func logDrift(res reconcile.Result) {
	for _, l := range res.Locations {
		if l.Changed {
			slog.Info("config drift corrected", "path", l.Path)
		}
		if l.Err != "" || l.ParseErr != "" {
			slog.Warn("config drift check failed", "path", l.Path, "error", l.Err, "parseError", l.ParseErr)
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default QUICKCLAW_DASHBOARD_HOST or 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default QUICKCLAW_DASHBOARD_PORT or 3000)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch gateway configs for outside edits")
	rootCmd.AddCommand(serveCmd)
}
