// Package validator runs the checks a profile declares against a candidate file.
package validator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/safe-uploader/internal/model"
)

var (
	// ErrSizeExceeded is returned when a file is larger than allowed or its size is unknown.
	ErrSizeExceeded = errors.New("file size check failed")

	// ErrMimeTypeNotAllowed is returned when a file's mime type is not accepted by the profile.
	ErrMimeTypeNotAllowed = errors.New("mime type not allowed")
)

// fileStorage defines the file lookups the checks rely on.
type fileStorage interface {
	Size(path string) (int64, error)
	MimeType(path string) (string, error)
}

// Validator checks candidate files against profile rules.
type Validator struct {
	fileStorage fileStorage
}

// New creates a new Validator with the given file storage backend.
func New(fs fileStorage) *Validator {
	return &Validator{fileStorage: fs}
}

// Validate runs the size check and then the mime check of p against path.
//
// With stopOnFirst the first failure is returned alone. Otherwise both checks
// run and every failure is returned in order. An empty result means the file
// passed.
func (v *Validator) Validate(ctx context.Context, p model.Profile, path string, stopOnFirst bool) []error {
	checks := []func(context.Context, model.Profile, string) error{
		v.checkSize,
		v.checkMimeType,
	}

	var errs []error
	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}

		if err := check(ctx, p, path); err != nil {
			zlog.Logger.Warn().Err(err).Str("path", path).Msg("validation check failed")

			errs = append(errs, err)
			if stopOnFirst {
				return errs
			}
		}
	}

	return errs
}

func (v *Validator) checkSize(_ context.Context, p model.Profile, path string) error {
	if p.MaxSize.Disabled() || !p.MaxSize.IsSet() {
		return nil
	}

	size, err := v.fileStorage.Size(path)
	if err != nil {
		return fmt.Errorf("%w: cannot get the file size for file %s: %v", ErrSizeExceeded, path, err)
	}

	return CheckSize(path, size, p.MaxSize.Bytes())
}

// CheckSize fails when size is above maxBytes.
func CheckSize(path string, size int64, maxBytes uint64) error {
	if size < 0 || uint64(size) > maxBytes {
		return fmt.Errorf("%w: the file size of %s is %d bytes, but only %d bytes are allowed",
			ErrSizeExceeded, path, size, maxBytes)
	}
	return nil
}

func (v *Validator) checkMimeType(_ context.Context, p model.Profile, path string) error {
	if len(p.AcceptedMimeTypes) == 0 {
		return nil
	}

	detected, err := v.fileStorage.MimeType(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMimeTypeNotAllowed, err)
	}

	if MatchMimeType(detected, p.AcceptedMimeTypes) {
		return nil
	}

	return fmt.Errorf("%w: the allowed mime types are %s; %s was given for file %s",
		ErrMimeTypeNotAllowed, strings.Join(p.AcceptedMimeTypes, ", "), detected, path)
}

// MatchMimeType reports whether detected is accepted, either by an exact entry or
// by a "main/*" entry sharing its main type.
func MatchMimeType(detected string, accepted []string) bool {
	if slices.Contains(accepted, detected) {
		return true
	}

	mainType, _, _ := strings.Cut(detected, "/")
	for _, entry := range accepted {
		main, sub, ok := strings.Cut(entry, "/")
		if ok && sub == "*" && main == mainType {
			return true
		}
	}

	return false
}
