package learnerstate

import "time"

// Merge folds one incoming report into the existing record, if any.
//
// Status and CompletedCount never move backwards, ContentProgress keeps the
// maximum ever observed and every call counts as one view. A malformed
// timestamp, incoming or stored, fails the merge with a *TimestampError.
func Merge(existing *Record, in Report, now time.Time) (Record, Outcome, error) {
	accessIn, err := parseOptional("lastAccessTime", deref(in.LastAccessTime))
	if err != nil {
		return Record{}, "", err
	}
	completedIn, err := parseOptional("lastCompletedTime", deref(in.LastCompletedTime))
	if err != nil {
		return Record{}, "", err
	}

	requested := NotStarted
	if in.Status != nil {
		requested = *in.Status
	}

	if existing == nil {
		return mergeNew(in, requested, accessIn, completedIn, now), OutcomeMerged, nil
	}

	accessCur, err := parseOptional("lastAccessTime", existing.LastAccessTime)
	if err != nil {
		return Record{}, "", err
	}
	completedCur, err := parseOptional("lastCompletedTime", existing.LastCompletedTime)
	if err != nil {
		return Record{}, "", err
	}

	out := *existing
	out.UserID, out.ContentID, out.CourseID, out.BatchID = in.UserID, in.ContentID, in.CourseID, in.BatchID

	if requested >= existing.Status {
		out.Status = requested
		if requested == Completed {
			out.CompletedCount = existing.CompletedCount + 1
			out.LastCompletedTime = LaterOf(completedCur, completedIn, now)
		}
	}
	// A stale report keeps the stored status, count and completion time.

	out.ViewCount = existing.ViewCount + 1
	if in.ContentProgress != nil && *in.ContentProgress > existing.ContentProgress {
		out.ContentProgress = *in.ContentProgress
	}
	out.LastAccessTime = LaterOf(accessCur, accessIn, now)
	out.LastUpdatedTime = FormatTime(now)
	return out, OutcomeMerged, nil
}

func mergeNew(in Report, status Status, accessIn, completedIn *time.Time, now time.Time) Record {
	rec := Record{
		UserID:          in.UserID,
		ContentID:       in.ContentID,
		CourseID:        in.CourseID,
		BatchID:         in.BatchID,
		Status:          status,
		ViewCount:       1,
		LastUpdatedTime: FormatTime(now),
		LastAccessTime:  FormatTime(now),
	}
	if status == Completed {
		rec.CompletedCount = 1
		if completedIn != nil {
			rec.LastCompletedTime = FormatTime(*completedIn)
		}
	}
	if in.ContentProgress != nil {
		rec.ContentProgress = *in.ContentProgress
	}
	if accessIn != nil {
		rec.LastAccessTime = FormatTime(*accessIn)
	}
	return rec
}
