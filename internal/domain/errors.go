package domain

import "errors"

// Kind classifies an error for Pipeline and Query Surface handling.
type Kind string

const (
	// KindMissingFile: on-disk path vanished between enumeration and processing.
	KindMissingFile Kind = "missing_file"
	// KindUnreadableMedia: decoder rejects the file; terminal until manual retry.
	KindUnreadableMedia Kind = "unreadable_media"
	// KindStageTransient: I/O or transient decoder error; job moves to failed.
	KindStageTransient Kind = "stage_transient"
	// KindModelNotReady: model host failed to load; job stays pending.
	KindModelNotReady Kind = "model_not_ready"
	// KindConflict: concurrent writes; should not occur with single-claim pipeline.
	KindConflict Kind = "conflict"
	// KindNotFound: query references an id that does not exist.
	KindNotFound Kind = "not_found"
	// KindBadRequest: query filter values out of range or ill-typed.
	KindBadRequest Kind = "bad_request"
)

// Error wraps an underlying error with a Kind so callers can branch on
// handling policy (retry, fail terminally, back off, surface to caller).
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

// NewError constructs a Kind-tagged error.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the Kind from err, defaulting to KindStageTransient for
// errors that were not explicitly classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStageTransient
}

// Retriable reports whether the error kind allows an automatic re-queue
// (as opposed to requiring operator action via reset-failed).
func Retriable(err error) bool {
	switch KindOf(err) {
	case KindModelNotReady:
		return true
	default:
		return false
	}
}

// Sentinel not-found errors for specific entities, used by the Query Surface.
var (
	ErrFileNotFound  = NewError(KindNotFound, "file not found", nil)
	ErrSceneNotFound = NewError(KindNotFound, "scene not found", nil)
	ErrFaceNotFound  = NewError(KindNotFound, "face not found", nil)
)
