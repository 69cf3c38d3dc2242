package submission

import "errors"

var (
	ErrNotFound  = errors.New("submission not found")
	ErrForbidden = errors.New("not the submission author")

	ErrTitleRequired = errors.New("title is required")

	// ErrUnsupportedFileType is returned before any storage write is
	// attempted.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	ErrNoFile = errors.New("submission has no file")
)
