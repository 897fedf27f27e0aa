// Package learnerstate holds the learner content-state model and the merge
// rules that fold one progress report into the previously persisted record.
package learnerstate

import "fmt"

// Status is the ordinal progress state of a content item.
// Ordinal comparison defines the monotonic order.
type Status int

const (
	NotStarted Status = 0
	InProgress Status = 1
	Completed  Status = 2
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case InProgress:
		return "IN_PROGRESS"
	case Completed:
		return "COMPLETED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	return s >= NotStarted && s <= Completed
}

// Report is one incoming progress report for a single content item.
// Nil pointers mean the caller did not send the field.
type Report struct {
	UserID            string  `json:"userId,omitempty" yaml:"userId"`
	ContentID         string  `json:"contentId" yaml:"contentId"`
	CourseID          string  `json:"courseId,omitempty" yaml:"courseId"`
	BatchID           string  `json:"batchId,omitempty" yaml:"batchId"`
	Status            *Status `json:"status,omitempty" yaml:"status"`
	ContentProgress   *int    `json:"contentProgress,omitempty" yaml:"contentProgress"`
	LastAccessTime    *string `json:"lastAccessTime,omitempty" yaml:"lastAccessTime"`
	LastCompletedTime *string `json:"lastCompletedTime,omitempty" yaml:"lastCompletedTime"`
}

// Record is the persisted content state for one derived key.
// Timestamp fields hold canonical strings (see FormatTime); empty means unset.
type Record struct {
	ID                string `json:"id"`
	UserID            string `json:"userId"`
	ContentID         string `json:"contentId"`
	CourseID          string `json:"courseId"`
	BatchID           string `json:"batchId"`
	Status            Status `json:"status"`
	ContentProgress   int    `json:"contentProgress"`
	ViewCount         int    `json:"viewCount"`
	CompletedCount    int    `json:"completedCount"`
	LastAccessTime    string `json:"lastAccessTime,omitempty"`
	LastUpdatedTime   string `json:"lastUpdatedTime,omitempty"`
	LastCompletedTime string `json:"lastCompletedTime,omitempty"`
}

// Outcome is the per-item result of a merge.
type Outcome string

const OutcomeMerged Outcome = "MERGED"

// StatusPtr and IntPtr are helpers for building reports in code.
func StatusPtr(s Status) *Status { return &s }

func IntPtr(v int) *int { return &v }

func StringPtr(v string) *string { return &v }
