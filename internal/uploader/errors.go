package uploader

import (
	"errors"

	"github.com/aliskhannn/safe-uploader/internal/config"
	"github.com/aliskhannn/safe-uploader/internal/validator"
)

// Errors reported by an upload run. Every reported error wraps exactly one of them,
// so callers can branch with errors.Is.
var (
	ErrConfigNotFound     = config.ErrConfigNotFound
	ErrConfigInvalid      = config.ErrConfigInvalid
	ErrProfileNotFound    = config.ErrProfileNotFound
	ErrInvalidProfileType = config.ErrInvalidProfileType
	ErrInvalidProfile     = config.ErrInvalidProfile
	ErrSizeExceeded       = validator.ErrSizeExceeded
	ErrMimeTypeNotAllowed = validator.ErrMimeTypeNotAllowed

	ErrSourceNotFound   = errors.New("source file not found")
	ErrMoveFailed       = errors.New("could not place file")
	ErrThumbnailFailed  = errors.New("thumbnail failed")
	ErrStructuralUpload = errors.New("malformed upload")
)
