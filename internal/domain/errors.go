package domain

import "errors"

// Failure taxonomy shared by adapters and the pipeline.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrRenderFailure     = errors.New("render failure")
	ErrComposeFailure    = errors.New("compose failure")
	ErrTransientUpload   = errors.New("transient upload error")
	ErrAuthExpired       = errors.New("auth expired")

	// ErrAlreadyPublished is returned by a history store when a second
	// published record for the same item would be written.
	ErrAlreadyPublished = errors.New("item already published")
)

// IsFatal reports whether err must halt intake for the rest of the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrAuthExpired)
}

// ErrorKind names the taxonomy entry of err, or "" when none matches.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthExpired):
		return "AuthExpired"
	case errors.Is(err, ErrQuotaExceeded):
		return "QuotaExceeded"
	case errors.Is(err, ErrTransientUpload):
		return "TransientUploadError"
	case errors.Is(err, ErrComposeFailure):
		return "ComposeFailure"
	case errors.Is(err, ErrRenderFailure):
		return "RenderFailure"
	case errors.Is(err, ErrSourceUnavailable):
		return "SourceUnavailable"
	default:
		return ""
	}
}
