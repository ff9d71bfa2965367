package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ultralan/HakiMeet/pkg/bridge"
	ds "github.com/ultralan/HakiMeet/pkg/doubaospeech"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket bridge",
	Long: `Serve browser clients over websocket and bridge each connection to one
realtime dialogue.

Endpoints:
  GET /ws/dialogue[/{id}]  dialogue websocket
  GET /healthz             liveness
  GET /metrics             Prometheus metrics

The prompt file (-f) supplies the system role, greeting and reference
context for every dialogue:
  system_role: |
    你是一名资深后端面试官……
  greeting: 你好，我是今天的面试官。请先做一个简单的自我介绍吧。
  context:
    - 候选人简历: ……

Examples:
  hakimeet -c prod serve -f prompts.yaml --addr :8080
  hakimeet -c prod serve -f prompts.yaml --log-file bridge.log`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if getInputFile() == "" {
			return fmt.Errorf("prompt file is required, use -f flag")
		}
		prompts, err := bridge.LoadStaticPrompts(getInputFile())
		if err != nil {
			return err
		}

		cliCtx, err := getContext()
		if err != nil {
			return err
		}
		if prompts.Speaker == "" {
			prompts.Speaker = cliCtx.Speaker
		}

		namespace, _ := cmd.Flags().GetString("metrics-namespace")
		metrics := bridge.NewMetrics(namespace)

		client, err := createClient(cliCtx, ds.WithRealtimeMetrics(metrics))
		if err != nil {
			return err
		}

		var opts []bridge.Option
		if anyOrigin, _ := cmd.Flags().GetBool("allow-any-origin"); anyOrigin {
			opts = append(opts, bridge.WithAllowAnyOrigin())
		}
		server := bridge.New(bridge.RealtimeDialer{Client: client}, prompts, metrics, opts...)

		addr, _ := cmd.Flags().GetString("addr")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, addr, server.Router(), shutdownTimeout)
	},
}

func runServe(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hakimeet: server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("hakimeet: shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("hakimeet: graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	slog.Info("hakimeet: shutdown complete")
	return nil
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().Bool("allow-any-origin", false, "Accept websocket upgrades from any Origin")
	serveCmd.Flags().String("metrics-namespace", "hakimeet", "Prometheus metrics namespace")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
}
