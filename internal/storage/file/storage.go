package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

var (
	// ErrFileNotFound is returned when a path does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrIsDirectory is returned when a file was expected but a directory was found.
	ErrIsDirectory = errors.New("path is a directory")
)

// Storage provides the filesystem operations of the upload pipeline.
// It works on top of an afero.Fs, so the whole pipeline can run on the
// local disk or on an in-memory filesystem.
type Storage struct {
	fs afero.Fs
}

// NewStorage creates a new Storage over fs. A nil fs means the local filesystem.
func NewStorage(fs afero.Fs) *Storage {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Storage{fs: fs}
}

// Fs returns the underlying filesystem.
func (s *Storage) Fs() afero.Fs {
	return s.fs
}

// Exists reports whether path exists.
func (s *Storage) Exists(path string) bool {
	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

// IsFile reports whether path exists and is a regular file.
func (s *Storage) IsFile(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Size returns the size in bytes of the regular file at path.
func (s *Storage) Size(path string) (int64, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	return info.Size(), nil
}

// EnsureDir creates dir and any missing parents.
func (s *Storage) EnsureDir(dir string) error {
	if err := s.fs.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// EnsureParentDir creates the directory that will contain path.
func (s *Storage) EnsureParentDir(path string) error {
	return s.EnsureDir(filepath.Dir(path))
}

// Move moves src to dst. A plain rename is tried first; when it fails (for example
// across devices) the content is copied and src removed.
func (s *Storage) Move(src, dst string) error {
	if err := s.fs.Rename(src, dst); err == nil {
		return nil
	}

	if err := s.copyFile(src, dst); err != nil {
		return err
	}

	if err := s.fs.Remove(src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}

	return nil
}

func (s *Storage) copyFile(src, dst string) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := s.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = s.fs.Remove(dst)
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if err := out.Close(); err != nil {
		_ = s.fs.Remove(dst)
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	return nil
}

// MimeType detects the mime type of path from its content.
// Parameters such as "; charset=utf-8" are stripped.
func (s *Storage) MimeType(path string) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to detect mime type of %s: %w", path, err)
	}

	value, _, _ := strings.Cut(mt.String(), ";")
	return strings.TrimSpace(value), nil
}

// Open opens path for reading.
func (s *Storage) Open(path string) (io.ReadCloser, error) {
	return s.fs.Open(path)
}

// Create creates or truncates path for writing.
func (s *Storage) Create(path string) (io.WriteCloser, error) {
	return s.fs.Create(path)
}

// Save stores src in dir under filename, creating dir if needed.
// Returns the path of the written file. On error a non-empty path names a partial
// file left for the caller to remove.
func (s *Storage) Save(dir, filename string, src io.Reader) (string, int64, error) {
	if err := s.EnsureDir(dir); err != nil {
		return "", 0, err
	}

	dstPath := filepath.Join(dir, filename)
	dst, err := s.fs.Create(dstPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file %s: %w", dstPath, err)
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		_ = dst.Close()
		return dstPath, n, fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	if err := dst.Close(); err != nil {
		return dstPath, n, fmt.Errorf("failed to close %s: %w", dstPath, err)
	}

	return dstPath, n, nil
}

// Delete removes the file at path.
func (s *Storage) Delete(path string) error {
	return s.fs.Remove(path)
}
