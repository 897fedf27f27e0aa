package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/learning-platform/services/progress/internal/reconcile"
	"github.com/example/learning-platform/services/progress/internal/request"
	"github.com/example/learning-platform/services/progress/internal/store"
)

type reconcileOutput struct {
	Result reconcile.Digest `json:"result"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	var userID, file, sqlitePath, now string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Apply a YAML batch of content states for one user",
		Long: `Apply a YAML batch of content states for one user.

The file holds a "contents" list using the same field names as the HTTP API.
Without --sqlite the batch is applied to a throwaway in-memory store.
Exits 1 when any item FAILED.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, rootOpts, userID, file, sqlitePath, now)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML batch file (required)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database path")
	cmd.Flags().StringVar(&now, "now", "", "RFC 3339 time used as \"now\" (default: current time)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runReconcile(cmd *cobra.Command, opts *RootOptions, userID, file, sqlitePath, now string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "read batch file", Err: err}
	}
	var batch request.Batch
	if err := yaml.Unmarshal(raw, &batch); err != nil {
		return &ExitError{Code: ExitCommandError, Message: "parse batch file", Err: err}
	}
	reports, err := batch.Reports(userID)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "invalid batch", Err: err}
	}

	clock, err := parseNow(now)
	if err != nil {
		return err
	}
	st, closeStore, err := openLocalStore(sqlitePath)
	if err != nil {
		return err
	}
	defer closeStore()

	r := &reconcile.Reconciler{Store: st, Log: opts.logger(), Now: clock}
	digest := r.Reconcile(context.Background(), userID, reports, nil)

	if opts.Format == "json" {
		err = writeJSON(cmd.OutOrStdout(), reconcileOutput{Result: digest})
	} else {
		err = writeDigestText(cmd, digest)
	}
	if err != nil {
		return err
	}

	for _, s := range digest {
		if s == reconcile.StatusFailed {
			return &ExitError{Code: ExitFailure, Message: "one or more items failed"}
		}
	}
	return nil
}

func writeDigestText(cmd *cobra.Command, digest reconcile.Digest) error {
	ids := make([]string, 0, len(digest))
	for id := range digest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, digest[id]); err != nil {
			return err
		}
	}
	return nil
}

func parseNow(v string) (func() time.Time, error) {
	if v == "" {
		return time.Now, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "invalid --now", Err: err}
	}
	return func() time.Time { return t }, nil
}

func openLocalStore(sqlitePath string) (store.RecordStore, func(), error) {
	if sqlitePath == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	s, err := store.OpenSQLite(sqlitePath)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitCommandError, Message: "open sqlite store", Err: err}
	}
	return s, func() { _ = s.Close() }, nil
}
