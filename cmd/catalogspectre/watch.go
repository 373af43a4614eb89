package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/watch"
	"github.com/ppiankov/catalogspectre/pkg/config"
)

// watchEvent is one JSON line printed by the watch command
type watchEvent struct {
	models.Event
	Error string `json:"error,omitempty"`
}

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	opts := &options{}
	var debounce string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream row patches while the metadata tree changes",
		Long: `Load one resource type and keep it current: every change below the
root triggers a reload and the differences are printed as JSON lines.
A replace event comes first, then patch and error events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("debounce") {
				cfg.WatchDebounce, err = config.ParseDuration(debounce)
				if err != nil {
					return fmt.Errorf("invalid --debounce duration: %w", err)
				}
			}
			types, err := resourceTypes(cfg)
			if err != nil {
				return err
			}
			if len(types) != 1 {
				return fmt.Errorf("watch expects exactly one --type, got %d", len(types))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cfg, types[0], cmd.OutOrStdout())
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&debounce, "debounce", "500ms", "Quiet period before a reload (e.g., 200ms, 2s)")
	return cmd
}

// runWatch streams session events to out until ctx is done
func runWatch(ctx context.Context, cfg *config.Config, t models.ResourceType, out io.Writer) error {
	p, err := newPipeline(cfg, true)
	if err != nil {
		return err
	}
	defer p.Close()

	sess, err := p.newSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	var mu sync.Mutex
	enc := json.NewEncoder(out)
	unsubscribe := sess.Subscribe(func(event models.Event) {
		line := watchEvent{Event: event}
		if event.Err != nil {
			line.Error = event.Err.Error()
		}
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(line); err != nil {
			slog.Warn("failed to write event", slog.String("error", err.Error()))
		}
	})
	defer unsubscribe()

	localRoot := p.stores.fs.LocalPath(cfg.StoreRoot)
	w, err := watch.New(localRoot, cfg.WatchDebounce, p.stores.cache, func() {
		sess.Reload(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return fmt.Errorf("failed to watch %s: %w", localRoot, err)
	}
	defer w.Stop()

	sess.SetSource(ctx, cfg.StoreRoot, t)
	slog.Info("watching", slog.String("root", localRoot), slog.String("type", string(t)))

	<-ctx.Done()
	return nil
}
