package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/learning-platform/services/progress/internal/contentkey"
)

type keyOutput struct {
	Key       string `json:"key"`
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`
	CourseID  string `json:"course_id"`
	BatchID   string `json:"batch_id"`
}

// NewKeyCommand creates the key command.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	var userID, contentID, courseID, batchID string

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the record key for a (user, content, course, batch) tuple",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := keyOutput{
				Key:       contentkey.Derive(userID, contentID, courseID, batchID),
				UserID:    userID,
				ContentID: contentID,
				CourseID:  contentkey.OrNotAvailable(courseID),
				BatchID:   contentkey.OrNotAvailable(batchID),
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), out.Key)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&contentID, "content", "", "content id (required)")
	cmd.Flags().StringVar(&courseID, "course", "", "course id (default N/A)")
	cmd.Flags().StringVar(&batchID, "batch", "", "batch id (default N/A)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}
