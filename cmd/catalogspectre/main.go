package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/catalogspectre/internal/logging"
	"github.com/ppiankov/catalogspectre/internal/models"
)

var (
	version = "0.4.0"
	verbose bool
)

// Exit codes for structured error reporting.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNotFound   = 3
	ExitNetwork    = 5
	ExitFindings   = 6
)

// FindingsError indicates the review completed but rows still need review.
type FindingsError struct {
	Count int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d rows need review", e.Count)
}

func main() {
	logging.Init(false)

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		exitCode := classifyError(err)
		var fe *FindingsError
		if errors.As(err, &fe) {
			slog.Info("rows need review", slog.Int("count", fe.Count))
		} else {
			slog.Error("command failed", slog.String("error", err.Error()))
		}
		os.Exit(exitCode)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogspectre",
		Short: "Catalog review and dashboard health tool",
		Long: `CatalogSpectre loads catalog entities (tables, queries, dashboards,
workflows) from a metadata tree, scores dashboard engagement from a
view-event feed and lets reviewers annotate and commit edits.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(NewReviewCmd())
	root.AddCommand(NewEditCmd())
	root.AddCommand(NewHealthCmd())
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewVersionCmd())
	return root
}

func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var fe *FindingsError
	if errors.As(err, &fe) {
		return ExitFindings
	}

	if errors.Is(err, models.ErrSourceUnavailable) || os.IsNotExist(err) {
		return ExitNotFound
	}

	if errors.Is(err, models.ErrUnknownRow) ||
		errors.Is(err, models.ErrUnknownField) ||
		errors.Is(err, models.ErrReadOnlyField) ||
		errors.Is(err, models.ErrInvalidValue) {
		return ExitInvalidArg
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "not a directory") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such file") {
		return ExitNotFound
	}

	if strings.Contains(msg, "dial") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "network is unreachable") {
		return ExitNetwork
	}

	if strings.Contains(msg, "required") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "must be") ||
		strings.Contains(msg, "expected") {
		return ExitInvalidArg
	}

	return ExitInternal
}
