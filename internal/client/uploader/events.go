package uploader

// EventKind discriminates TransferEvent variants.
type EventKind int

const (
	// EventRecordBound reports that a placeholder record and a transfer
	// handle now exist for the task.
	EventRecordBound EventKind = iota
	// EventProgress carries acknowledged bytes and a speed estimate.
	EventProgress
	// EventAuthRefreshed reports that a credential refresh was spent.
	EventAuthRefreshed
	// EventAborted reports that an in-flight Run stopped due to an abort
	// (pause or cancel); the handle remains usable unless it was hard.
	EventAborted
	// EventCompleted reports a successful transfer.
	EventCompleted
	// EventFailed carries a classified unrecoverable failure.
	EventFailed
)

// FailureKind classifies unrecoverable transfer failures.
type FailureKind int

const (
	FailureNetwork FailureKind = iota
	FailureTooLarge
	FailureAuth
	FailureEndpointNotFound
	FailureServer
	FailureStaleRecord
	FailureRecordCreate
	FailureGeneric
)

// Failure is the terminal error surfaced to the user.
type Failure struct {
	Kind    FailureKind
	Message string
}

// TransferEvent is emitted by a session and consumed by the Manager's event
// loop, the only writer of task state.
type TransferEvent struct {
	TaskID string
	Kind   EventKind

	// EventRecordBound fields.
	RecordID  string
	UploadURL string
	Handle    TransferHandle

	// EventProgress fields.
	BytesUploaded int64
	BytesTotal    int64
	Speed         float64

	// EventFailed payload.
	Failure *Failure
}
