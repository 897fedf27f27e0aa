package request

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/learning-platform/services/progress/internal/learnerstate"
)

func TestReports_Converts(t *testing.T) {
	var env Envelope
	body := `{"request":{"contents":[
		{"contentId":"c1","courseId":"course-1","batchId":"b1","status":2,"contentProgress":100,"lastCompletedTime":"2024-01-05"},
		{"contentId":"c2"}
	]}}`
	require.NoError(t, json.Unmarshal([]byte(body), &env))

	reports, err := env.Request.Reports("u1")
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "u1", reports[0].UserID)
	assert.Equal(t, "course-1", reports[0].CourseID)
	require.NotNil(t, reports[0].Status)
	assert.Equal(t, learnerstate.Completed, *reports[0].Status)
	assert.Equal(t, 100, *reports[0].ContentProgress)
	assert.Equal(t, "2024-01-05", *reports[0].LastCompletedTime)

	assert.Nil(t, reports[1].Status)
	assert.Nil(t, reports[1].ContentProgress)
}

func TestReports_RejectsOutOfRangeStatus(t *testing.T) {
	b := Batch{Contents: []Content{
		{ContentID: "c1", Status: intPtr(3)},
		{ContentID: "c2", ContentProgress: intPtr(-1)},
		{Status: intPtr(1)},
	}}

	_, err := b.Reports("u1")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	assert.ElementsMatch(t, []FieldError{
		{Field: "Contents[0].Status", Rule: "max"},
		{Field: "Contents[1].ContentProgress", Rule: "min"},
		{Field: "Contents[2].ContentID", Rule: "required"},
	}, verr.Fields)
}

func TestReports_RequiresUser(t *testing.T) {
	_, err := Batch{}.Reports("  ")
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestReports_EmptyBatch(t *testing.T) {
	reports, err := Batch{}.Reports("u1")
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func intPtr(v int) *int { return &v }
