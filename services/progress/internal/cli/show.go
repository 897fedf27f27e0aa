package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/learning-platform/services/progress/internal/contentkey"
	"github.com/example/learning-platform/services/progress/internal/store"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var userID, contentID, courseID, batchID, sqlitePath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored record for a (user, content, course, batch) tuple",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.OpenSQLite(sqlitePath)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "open sqlite store", Err: err}
			}
			defer st.Close()

			key := contentkey.Derive(userID, contentID, courseID, batchID)
			rec, found, err := st.Get(context.Background(), store.DefaultCollection, key)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "read record", Err: err}
			}
			if !found {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("no record for key %s", key)}
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"key:             %s\nstatus:          %s\nprogress:        %d\nviews:           %d\ncompletions:     %d\nlast access:     %s\nlast completed:  %s\n",
				rec.ID, rec.Status, rec.ContentProgress, rec.ViewCount, rec.CompletedCount, rec.LastAccessTime, rec.LastCompletedTime)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&contentID, "content", "", "content id (required)")
	cmd.Flags().StringVar(&courseID, "course", "", "course id (default N/A)")
	cmd.Flags().StringVar(&batchID, "batch", "", "batch id (default N/A)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database path (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("content")
	_ = cmd.MarkFlagRequired("sqlite")
	return cmd
}
