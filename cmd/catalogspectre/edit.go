package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/catalogspectre/internal/app"
	"github.com/ppiankov/catalogspectre/internal/commitlog"
	"github.com/ppiankov/catalogspectre/internal/models"
	"github.com/ppiankov/catalogspectre/internal/session"
)

// editResult is printed by the edit command
type editResult struct {
	Rows      []models.Row `json:"rows"`
	Pending   []string     `json:"pending"`
	Committed int          `json:"committed"`
	CommitLog string       `json:"commit_log,omitempty"`
}

// NewEditCmd creates the edit command
func NewEditCmd() *cobra.Command {
	opts := &options{}
	var (
		sets   []string
		commit bool
	)

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit row fields and optionally commit them",
		Long: `Apply field edits to rows of one resource type. Each --set takes
KEY:FIELD=VALUE; an empty VALUE clears the field. All edits are validated
together and either all apply or none do. With --commit the edits are
appended to the commit log and merged into later reviews.`,
		Example: `  catalogspectre edit --type dashboard --set 101:action="Needs Review"
  catalogspectre edit --type query --set q1:tags=finance,daily --commit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			types, err := resourceTypes(cfg)
			if err != nil {
				return err
			}
			if len(types) != 1 {
				return fmt.Errorf("edit expects exactly one --type, got %d", len(types))
			}
			edits, err := parseEdits(sets)
			if err != nil {
				return err
			}

			p, err := newPipeline(cfg, false)
			if err != nil {
				return err
			}
			defer p.Close()

			logPath := commitLogPath(cfg)
			var sink session.CommitSink
			if commit {
				if app.IsFirstRun() && cfg.CommitLogPath == "" {
					cmd.PrintErrf("Committed edits are stored in %s (override with --commit-log)\n", logPath)
				}
				log, err := commitlog.Open(logPath)
				if err != nil {
					return err
				}
				sink = log
			}

			sess, err := p.newSession(sink)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			if _, err := loadSession(ctx, sess, cfg.StoreRoot, types[0]); err != nil {
				return err
			}
			if err := sess.OnBulkEdit(edits); err != nil {
				return err
			}

			result := editResult{Rows: editedRows(sess.MergedRows(), edits)}
			if commit {
				n, err := sess.Commit(ctx)
				if err != nil {
					return err
				}
				result.Committed = n
				result.CommitLog = logPath
			}
			result.Pending = sess.Pending()
			if result.Pending == nil {
				result.Pending = []string{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field edit KEY:FIELD=VALUE (repeatable)")
	cmd.Flags().BoolVar(&commit, "commit", false, "Append the edits to the commit log")
	_ = cmd.MarkFlagRequired("set") // Error only occurs if flag doesn't exist
	return cmd
}

// parseEdits converts KEY:FIELD=VALUE arguments. Keys may contain colons;
// the field is taken after the last one.
func parseEdits(values []string) ([]session.FieldEdit, error) {
	edits := make([]session.FieldEdit, 0, len(values))
	for _, value := range values {
		target, raw, ok := strings.Cut(value, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set value %q: expected KEY:FIELD=VALUE", value)
		}
		idx := strings.LastIndex(target, ":")
		if idx <= 0 || idx == len(target)-1 {
			return nil, fmt.Errorf("invalid --set value %q: expected KEY:FIELD=VALUE", value)
		}
		edit := session.FieldEdit{
			Key:   strings.TrimSpace(target[:idx]),
			Field: strings.TrimSpace(target[idx+1:]),
		}
		if raw != "" {
			edit.Value = raw
		}
		edits = append(edits, edit)
	}
	return edits, nil
}

// editedRows keeps the rows touched by edits, in display order
func editedRows(rows []models.Row, edits []session.FieldEdit) []models.Row {
	keys := make(map[string]struct{}, len(edits))
	for _, edit := range edits {
		keys[edit.Key] = struct{}{}
	}
	out := []models.Row{}
	for _, row := range rows {
		if _, ok := keys[row.Key]; ok {
			out = append(out, row)
		}
	}
	return out
}
