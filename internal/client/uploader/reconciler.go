package uploader

import (
	"context"
	"errors"
	"mime"
	"path/filepath"

	"github.com/reelproof/reelproof/internal/common"
	"github.com/reelproof/reelproof/internal/logging"
)

// Reconciler keeps the server-side placeholder record consistent with the
// actual transfer outcome. It creates a record before a transfer starts,
// matches re-selected files to interrupted uploads via the resume store, and
// deletes records for cancelled or unrecoverably failed transfers so they do
// not linger as orphans.
type Reconciler struct {
	records RecordService
	resume  ResumeStore
	log     logging.Logger
}

func NewReconciler(records RecordService, resume ResumeStore, log logging.Logger) *Reconciler {
	return &Reconciler{records: records, resume: resume, log: log}
}

// Prepare returns the record and starting offset for a transfer attempt.
//
// When locally persisted resume state matches the file fingerprint, the
// server is asked whether that record is still upload-eligible; if it is,
// the previous upload is continued (resumed == true). A record that is gone
// or already past the upload phase invalidates the local state and a fresh
// record is created instead.
func (r *Reconciler) Prepare(ctx context.Context, src FileSource, category AssetCategory) (ref RecordRef, offset int64, resumed bool, err error) {
	fp := src.Fingerprint()

	if st, lerr := r.resume.Lookup(ctx, fp); lerr == nil && st != nil {
		info, gerr := r.records.GetRecord(ctx, st.RecordID)
		switch {
		case gerr == nil && info.State.UploadEligible():
			return RecordRef{ID: st.RecordID, UploadURL: st.UploadURL}, st.Offset, true, nil
		case gerr == nil || isGone(gerr):
			// Stale: wrong phase or deleted on the server. Start fresh.
			r.ClearResume(ctx, fp)
		default:
			return RecordRef{}, 0, false, gerr
		}
	} else if lerr != nil && !errors.Is(lerr, common.ErrorNotFound) {
		r.log.Warn(ctx, "resume state lookup failed", "error", lerr)
	}

	meta := RecordMeta{
		FileName: src.Name,
		FileSize: src.Size,
		MimeType: mimeTypeFor(src.Name),
		Category: category,
	}
	created, cerr := r.records.CreateRecord(ctx, meta)
	if cerr != nil {
		return RecordRef{}, 0, false, cerr
	}
	return *created, 0, false, nil
}

// SaveProgress persists the resume link for fingerprint. Best-effort: resume
// metadata is an optimization, losing it only costs a restart from zero.
func (r *Reconciler) SaveProgress(ctx context.Context, fingerprint string, ref RecordRef, offset int64) {
	err := r.resume.Save(ctx, ResumeState{
		Fingerprint: fingerprint,
		RecordID:    ref.ID,
		UploadURL:   ref.UploadURL,
		Offset:      offset,
	})
	if err != nil {
		r.log.Warn(ctx, "saving resume state failed", "error", err, "record_id", ref.ID)
	}
}

// ClearResume drops local resume state so a future selection of the same
// file starts fresh.
func (r *Reconciler) ClearResume(ctx context.Context, fingerprint string) {
	if err := r.resume.Delete(ctx, fingerprint); err != nil && !errors.Is(err, common.ErrorNotFound) {
		r.log.Warn(ctx, "clearing resume state failed", "error", err)
	}
}

// Cleanup deletes the placeholder record and local resume state after a
// cancel or an unrecoverable failure. Failures are swallowed: an orphaned
// record is preferred over blocking the user-visible error path.
func (r *Reconciler) Cleanup(ctx context.Context, recordID, fingerprint string) {
	if fingerprint != "" {
		r.ClearResume(ctx, fingerprint)
	}
	if recordID == "" {
		return
	}
	if err := r.records.DeleteRecord(ctx, recordID); err != nil {
		r.log.Warn(ctx, "deleting upload record failed", "error", err, "record_id", recordID)
	}
}

func isGone(err error) bool {
	code, ok := httpStatus(err)
	return ok && (code == 404 || code == 410)
}

func mimeTypeFor(name string) string {
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
