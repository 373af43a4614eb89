package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var dir string
	var port int

	cmd := &cobra.Command{
		Use:   "serve [directory]",
		Short: "Serve a written review report",
		Long: `Start a local HTTP server for a report directory written by
'catalogspectre review'. report.json is served at the root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				dir = args[0]
			}
			handler, err := newReportHandler(dir)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, handler, dir, port)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./report", "Directory to serve")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to serve on")

	return cmd
}

// newReportHandler serves dir, answering / with report.json
func newReportHandler(dir string) (http.Handler, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("directory not found: %s", dir)
	}
	reportPath := filepath.Join(dir, "report.json")
	if _, err := os.Stat(reportPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("report.json not found in %s\nRun 'catalogspectre review' first to generate a report", dir)
	}

	files := http.FileServer(http.Dir(dir))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, reportPath)
	})
	mux.Handle("GET /", files)
	return mux, nil
}

// runServe serves handler until ctx is done
func runServe(ctx context.Context, handler http.Handler, dir string, port int) error {
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := "http://localhost:" + strconv.Itoa(port)
	fmt.Fprintf(os.Stderr, "Serving %s at %s (Ctrl+C to stop)\n", dir, url)
	slog.Debug("report server started",
		slog.String("url", url),
		slog.String("dir", dir),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
