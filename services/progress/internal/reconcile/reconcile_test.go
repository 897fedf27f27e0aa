package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/learning-platform/services/progress/internal/contentkey"
	"github.com/example/learning-platform/services/progress/internal/learnerstate"
	"github.com/example/learning-platform/services/progress/internal/store"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingStore wraps a MemoryStore and counts calls, optionally failing
// reads or writes for specific keys.
type recordingStore struct {
	mu        sync.Mutex
	inner     *store.MemoryStore
	gets      int
	upserts   []string
	failGet   map[string]error
	failWrite map[string]error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		inner:     store.NewMemoryStore(),
		failGet:   map[string]error{},
		failWrite: map[string]error{},
	}
}

func (s *recordingStore) Get(ctx context.Context, collection, key string) (learnerstate.Record, bool, error) {
	s.mu.Lock()
	s.gets++
	err := s.failGet[key]
	s.mu.Unlock()
	if err != nil {
		return learnerstate.Record{}, false, err
	}
	return s.inner.Get(ctx, collection, key)
}

func (s *recordingStore) Upsert(ctx context.Context, collection string, rec learnerstate.Record) error {
	s.mu.Lock()
	err := s.failWrite[rec.ID]
	if err == nil {
		s.upserts = append(s.upserts, rec.ID)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Upsert(ctx, collection, rec)
}

type recordingNotifier struct {
	mu     sync.Mutex
	calls  []SideDigest
	users  []string
	err    error
	events *eventLog
}

func (n *recordingNotifier) Notify(_ context.Context, userID string, states SideDigest) error {
	n.mu.Lock()
	n.calls = append(n.calls, states)
	n.users = append(n.users, userID)
	n.mu.Unlock()
	if n.events != nil {
		n.events.add("notify")
	}
	return n.err
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func newReconciler(st store.RecordStore, n Notifier) *Reconciler {
	return &Reconciler{
		Store:    st,
		Notifier: n,
		Now:      func() time.Time { return fixedNow },
	}
}

func key(userID, contentID string) string {
	return contentkey.Derive(userID, contentID, "", "")
}

func TestReconcile_IsolatesMalformedItem(t *testing.T) {
	st := newRecordingStore()
	n := &recordingNotifier{}
	r := newReconciler(st, n)

	var failures []*ItemError
	r.OnItemError = func(e *ItemError) { failures = append(failures, e) }

	batch := []learnerstate.Report{
		{ContentID: "c1", Status: learnerstate.StatusPtr(learnerstate.InProgress)},
		{ContentID: "c2", Status: learnerstate.StatusPtr(learnerstate.Completed), LastCompletedTime: learnerstate.StringPtr("yesterday-ish")},
		{ContentID: "c3", Status: learnerstate.StatusPtr(learnerstate.Completed)},
	}
	digest := r.Reconcile(context.Background(), "u1", batch, nil)
	r.Wait()

	assert.Equal(t, Digest{"c1": StatusSuccess, "c2": StatusFailed, "c3": StatusSuccess}, digest)
	assert.ElementsMatch(t, []string{key("u1", "c1"), key("u1", "c3")}, st.upserts)

	require.Len(t, failures, 1)
	assert.Equal(t, KindMalformedTimestamp, failures[0].Kind)
	assert.Equal(t, "c2", failures[0].ContentID)
	assert.ErrorIs(t, failures[0], learnerstate.ErrMalformedTimestamp)

	require.Len(t, n.calls, 1)
	assert.Equal(t, SideDigest{
		key("u1", "c1"): learnerstate.InProgress,
		key("u1", "c3"): learnerstate.Completed,
	}, n.calls[0])
	assert.Equal(t, []string{"u1"}, n.users)
}

func TestReconcile_EmptyBatch(t *testing.T) {
	st := newRecordingStore()
	n := &recordingNotifier{}
	r := newReconciler(st, n)

	replied := false
	digest := r.Reconcile(context.Background(), "u1", nil, func(d Digest) {
		replied = true
		assert.Empty(t, d)
	})
	r.Wait()

	assert.True(t, replied)
	assert.Empty(t, digest)
	assert.Zero(t, st.gets)
	assert.Empty(t, st.upserts)
	assert.Empty(t, n.calls)
}

func TestReconcile_AllFailSkipsNotifier(t *testing.T) {
	st := newRecordingStore()
	n := &recordingNotifier{}
	r := newReconciler(st, n)

	batch := []learnerstate.Report{
		{ContentID: "c1", LastAccessTime: learnerstate.StringPtr("nope")},
		{ContentID: "c2", LastAccessTime: learnerstate.StringPtr("31/12/2024")},
	}
	digest := r.Reconcile(context.Background(), "u1", batch, nil)
	r.Wait()

	assert.Equal(t, Digest{"c1": StatusFailed, "c2": StatusFailed}, digest)
	assert.Empty(t, st.upserts)
	assert.Empty(t, n.calls)
}

func TestReconcile_DuplicateContentLaterWins(t *testing.T) {
	st := newRecordingStore()
	r := newReconciler(st, nil)

	batch := []learnerstate.Report{
		{ContentID: "c1", Status: learnerstate.StatusPtr(learnerstate.InProgress)},
		{ContentID: "c1", LastAccessTime: learnerstate.StringPtr("bad")},
	}
	digest := r.Reconcile(context.Background(), "u1", batch, nil)
	assert.Equal(t, Digest{"c1": StatusFailed}, digest)

	batch = []learnerstate.Report{
		{ContentID: "c2", LastAccessTime: learnerstate.StringPtr("bad")},
		{ContentID: "c2", Status: learnerstate.StatusPtr(learnerstate.InProgress)},
	}
	digest = r.Reconcile(context.Background(), "u1", batch, nil)
	assert.Equal(t, Digest{"c2": StatusSuccess}, digest)

	// Both occurrences of c1 were processed; the first one still persisted.
	rec, found, err := r.Lookup(context.Background(), "u1", "c1", "", "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, rec.ViewCount)
}

func TestReconcile_RepliesBeforeNotify(t *testing.T) {
	events := &eventLog{}
	n := &recordingNotifier{events: events}
	r := newReconciler(newRecordingStore(), n)

	batch := []learnerstate.Report{{ContentID: "c1", Status: learnerstate.StatusPtr(learnerstate.Completed)}}
	r.Reconcile(context.Background(), "u1", batch, func(Digest) { events.add("reply") })
	r.Wait()

	assert.Equal(t, []string{"reply", "notify"}, events.events)
}

func TestReconcile_NotifierFailureDoesNotAlterDigest(t *testing.T) {
	n := &recordingNotifier{err: errors.New("nats down")}
	r := newReconciler(newRecordingStore(), n)

	batch := []learnerstate.Report{{ContentID: "c1"}}
	digest := r.Reconcile(context.Background(), "u1", batch, nil)
	r.Wait()

	assert.Equal(t, Digest{"c1": StatusSuccess}, digest)
	assert.Len(t, n.calls, 1)
}

func TestReconcile_StoreReadFailure(t *testing.T) {
	st := newRecordingStore()
	st.failGet[key("u1", "c1")] = errors.New("timeout")
	r := newReconciler(st, nil)

	var kinds []ErrorKind
	r.OnItemError = func(e *ItemError) { kinds = append(kinds, e.Kind) }

	digest := r.Reconcile(context.Background(), "u1", []learnerstate.Report{{ContentID: "c1"}, {ContentID: "c2"}}, nil)

	assert.Equal(t, Digest{"c1": StatusFailed, "c2": StatusSuccess}, digest)
	assert.Equal(t, []ErrorKind{KindStoreRead}, kinds)
	assert.Equal(t, []string{key("u1", "c2")}, st.upserts)
}

func TestReconcile_StoreWriteFailure(t *testing.T) {
	st := newRecordingStore()
	st.failWrite[key("u1", "c2")] = errors.New("disk full")
	n := &recordingNotifier{}
	r := newReconciler(st, n)

	var kinds []ErrorKind
	r.OnItemError = func(e *ItemError) { kinds = append(kinds, e.Kind) }

	digest := r.Reconcile(context.Background(), "u1", []learnerstate.Report{{ContentID: "c1"}, {ContentID: "c2"}}, nil)
	r.Wait()

	assert.Equal(t, Digest{"c1": StatusSuccess, "c2": StatusFailed}, digest)
	assert.Equal(t, []ErrorKind{KindStoreWrite}, kinds)
	require.Len(t, n.calls, 1)
	assert.NotContains(t, n.calls[0], key("u1", "c2"))
}

func TestReconcile_AdvancesExistingRecord(t *testing.T) {
	st := newRecordingStore()
	k := contentkey.Derive("u1", "c1", "course-1", "batch-1")
	require.NoError(t, st.inner.Upsert(context.Background(), store.DefaultCollection, learnerstate.Record{
		ID: k, UserID: "u1", ContentID: "c1", CourseID: "course-1", BatchID: "batch-1",
		Status: learnerstate.InProgress, ContentProgress: 40, ViewCount: 3,
	}))
	r := newReconciler(st, nil)

	digest := r.Reconcile(context.Background(), "u1", []learnerstate.Report{{
		ContentID:         "c1",
		CourseID:          "course-1",
		BatchID:           "batch-1",
		Status:            learnerstate.StatusPtr(learnerstate.Completed),
		ContentProgress:   learnerstate.IntPtr(40),
		LastCompletedTime: learnerstate.StringPtr("2024-01-05"),
	}}, nil)
	assert.Equal(t, Digest{"c1": StatusSuccess}, digest)

	rec, found, err := r.Lookup(context.Background(), "u1", "c1", "course-1", "batch-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, k, rec.ID)
	assert.Equal(t, learnerstate.Completed, rec.Status)
	assert.Equal(t, 40, rec.ContentProgress)
	assert.Equal(t, 4, rec.ViewCount)
	assert.Equal(t, 1, rec.CompletedCount)
	assert.Equal(t, "2024-01-05 00:00:00:000+0000", rec.LastCompletedTime)
}

func TestReconcile_DefaultsMissingCourseAndBatch(t *testing.T) {
	r := newReconciler(newRecordingStore(), nil)

	r.Reconcile(context.Background(), "u1", []learnerstate.Report{{ContentID: "c1", UserID: "spoofed"}}, nil)

	rec, found, err := r.Lookup(context.Background(), "u1", "c1", contentkey.NotAvailable, contentkey.NotAvailable)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, contentkey.NotAvailable, rec.CourseID)
	assert.Equal(t, contentkey.NotAvailable, rec.BatchID)
	assert.Equal(t, learnerstate.NotStarted, rec.Status)
	assert.Equal(t, 1, rec.ViewCount)
}

func TestReconcile_ConcurrentUsers(t *testing.T) {
	r := newReconciler(newRecordingStore(), &recordingNotifier{})

	var wg sync.WaitGroup
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				r.Reconcile(context.Background(), userID, []learnerstate.Report{{ContentID: "c1"}}, nil)
			}
		}(u)
	}
	wg.Wait()
	r.Wait()

	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		rec, found, err := r.Lookup(context.Background(), u, "c1", "", "")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 5, rec.ViewCount, "user %s", u)
	}
}

func TestItemErrorKindString(t *testing.T) {
	assert.Equal(t, "malformed_timestamp", KindMalformedTimestamp.String())
	assert.Equal(t, "store_read", KindStoreRead.String())
	assert.Equal(t, "store_write", KindStoreWrite.String())
	assert.Equal(t, "unknown", ErrorKind(0).String())
}
