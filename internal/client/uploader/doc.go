// Package uploader implements the resumable multi-file upload queue.
//
// # Overview
//
// The package is built from four cooperating pieces:
//  1. Store — the canonical in-memory list of upload tasks; the single
//     source of truth read by the scheduler and by UIs (see Store).
//  2. Manager — the admission controller and event reducer. It owns all
//     status transitions: a single goroutine consumes TransferEvent values
//     emitted by running sessions and promotes queued tasks up to the
//     configured concurrency limit, FIFO by enqueue order (see Manager).
//  3. session — one resumable chunked transfer for one task, including the
//     record-creation handshake, progress/speed sampling, and a single
//     credential refresh on an authorization failure.
//  4. Reconciler — keeps the server-side placeholder record consistent with
//     the transfer outcome so cancelled or failed uploads do not leave
//     orphaned records (see Reconciler).
//
// # Collaborators
//
// Network side effects are delegated to small interfaces implemented
// elsewhere: RecordService (placeholder record API), Transport / TransferHandle
// (chunked byte transfer), CredentialStore (token refresh), and ResumeStore
// (locally persisted resume fingerprints).
//
// # Error Handling
//
// Nothing escapes the queue boundary: transfer failures are classified into
// user-facing messages and written into the task's Err field; the task stays
// in the queue in StatusError until it is retried or removed explicitly.
package uploader
