package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason    = "reason"
	MetaStage     = "stage"
	MetaField     = "field"
	MetaSelector  = "selector"
	MetaURL       = "url"
	MetaSessionID = "session_id"
	MetaSource    = "source"
	MetaToken     = "token"
	MetaPath      = "path"

	StageBrowser    = "browser"
	StageNavigation = "navigation"
	StageCapture    = "capture"
	StageScan       = "scan"
	StageFusion     = "fusion"
	StageOutput     = "output"

	CodeInternal         = "internal"
	CodeInvalidArgument  = "invalid_argument"
	CodeInvalidFilter    = "invalid_filter"
	CodeNotFound         = "not_found"
	CodeTimeout          = "timeout"
	CodeBrowserNotReady  = "browser_not_ready"
	CodeNavigationFailed = "navigation_failed"
	CodeCaptureFailed    = "capture_failed"
	CodeMetadataFailed   = "metadata_failed"
	CodeSessionActive    = "session_active"
	CodeNoSession        = "no_session"
	CodeCancelled        = "cancelled"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

func NotFoundError(op string, err error) error {
	return Wrap(op, CodeNotFound, err, map[string]any{
		MetaReason: "not_found",
	})
}

// CodeOf extracts the error code, CodeInternal when the error does not
// carry one.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

// Is reports whether the error carries the code.
func Is(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}

	return false
}
