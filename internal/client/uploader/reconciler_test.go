package uploader

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelproof/reelproof/internal/common"
	"github.com/reelproof/reelproof/internal/logging"
)

func newTestReconciler() (*Reconciler, *fakeRecords, *memResume) {
	records := newFakeRecords()
	resume := newMemResume()
	return NewReconciler(records, resume, logging.NewNop()), records, resume
}

func TestReconcilerPrepareCreatesFreshRecord(t *testing.T) {
	rec, records, resume := newTestReconciler()
	src := testSource("fresh.mp4", 100)

	ref, offset, resumed, err := rec.Prepare(context.Background(), src, CategoryVideo)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, int64(0), offset)
	assert.Equal(t, "rec-1", ref.ID)
	assert.Equal(t, "/u/rec-1", ref.UploadURL)

	// Resume state is only written once the transfer is actually open.
	_, lerr := resume.Lookup(context.Background(), src.Fingerprint())
	assert.ErrorIs(t, lerr, common.ErrorNotFound)
	assert.Equal(t, RecordAwaitingUpload, records.states["rec-1"])
}

func TestReconcilerPrepareResumesEligibleRecord(t *testing.T) {
	rec, records, resume := newTestReconciler()
	src := testSource("partial.mp4", 100)

	records.states["rec-9"] = RecordUploading
	require.NoError(t, resume.Save(context.Background(), ResumeState{
		Fingerprint: src.Fingerprint(),
		RecordID:    "rec-9",
		UploadURL:   "/u/rec-9",
		Offset:      40,
	}))

	ref, offset, resumed, err := rec.Prepare(context.Background(), src, CategoryVideo)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, int64(40), offset)
	assert.Equal(t, "rec-9", ref.ID)
	assert.Equal(t, "/u/rec-9", ref.UploadURL)
}

func TestReconcilerPrepareDiscardsGoneRecord(t *testing.T) {
	rec, _, resume := newTestReconciler()
	src := testSource("stale.mp4", 100)

	// The record referenced locally no longer exists on the server.
	require.NoError(t, resume.Save(context.Background(), ResumeState{
		Fingerprint: src.Fingerprint(),
		RecordID:    "rec-gone",
		Offset:      70,
	}))

	ref, offset, resumed, err := rec.Prepare(context.Background(), src, CategoryVideo)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, int64(0), offset)
	assert.Equal(t, "rec-1", ref.ID)

	_, lerr := resume.Lookup(context.Background(), src.Fingerprint())
	assert.ErrorIs(t, lerr, common.ErrorNotFound)
}

func TestReconcilerPrepareDiscardsRecordPastUploadPhase(t *testing.T) {
	rec, records, resume := newTestReconciler()
	src := testSource("done.mp4", 100)

	records.states["rec-7"] = RecordProcessed
	require.NoError(t, resume.Save(context.Background(), ResumeState{
		Fingerprint: src.Fingerprint(),
		RecordID:    "rec-7",
		Offset:      100,
	}))

	ref, _, resumed, err := rec.Prepare(context.Background(), src, CategoryVideo)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.NotEqual(t, "rec-7", ref.ID)
}

func TestReconcilerPrepareSurfacesServerError(t *testing.T) {
	rec, records, resume := newTestReconciler()
	src := testSource("flaky.mp4", 100)

	records.getErr = common.NewHTTPError(http.StatusInternalServerError, "boom")
	require.NoError(t, resume.Save(context.Background(), ResumeState{
		Fingerprint: src.Fingerprint(),
		RecordID:    "rec-3",
	}))

	_, _, _, err := rec.Prepare(context.Background(), src, CategoryVideo)
	require.Error(t, err)
	// A transient server error must not destroy the resume link.
	_, lerr := resume.Lookup(context.Background(), src.Fingerprint())
	assert.NoError(t, lerr)
}

func TestReconcilerCleanup(t *testing.T) {
	rec, records, resume := newTestReconciler()

	require.NoError(t, resume.Save(context.Background(), ResumeState{Fingerprint: "fp", RecordID: "rec-1"}))
	records.states["rec-1"] = RecordAwaitingUpload

	rec.Cleanup(context.Background(), "rec-1", "fp")
	assert.Equal(t, []string{"rec-1"}, records.deletions())
	_, lerr := resume.Lookup(context.Background(), "fp")
	assert.ErrorIs(t, lerr, common.ErrorNotFound)

	// An empty record id only drops local state.
	require.NoError(t, resume.Save(context.Background(), ResumeState{Fingerprint: "fp2", RecordID: "rec-x"}))
	rec.Cleanup(context.Background(), "", "fp2")
	assert.Equal(t, []string{"rec-1"}, records.deletions())
}
