package portal

import "errors"

// Kind classifies an operation failure. The API layer maps kinds to
// HTTP statuses; callers decide retry safety from the kind (a failed
// fetch has no side effect, a failed final delete leaves a duplicate).
type Kind string

const (
	KindUnauthorized         Kind = "unauthorized"
	KindInvalidFileType      Kind = "invalid_file_type"
	KindInvalidName          Kind = "invalid_name"
	KindSourceFetchFailed    Kind = "source_fetch_failed"
	KindPartialMoveCompleted Kind = "partial_move_completed"
	KindNotFound             Kind = "not_found"
	KindStoreUnavailable     Kind = "store_unavailable"
	KindUploadFailed         Kind = "upload_failed"
	KindDeleteFailed         Kind = "delete_failed"
	KindMoveFailed           Kind = "move_failed"
)

// Error is a classified operation failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
