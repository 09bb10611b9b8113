package model

import "path/filepath"

// UploadErrorCode is the transport-level status reported for a received upload.
type UploadErrorCode int

// Transport-level upload statuses.
const (
	UploadOK        UploadErrorCode = iota // no error
	UploadIniSize                          // exceeds the server-wide limit
	UploadFormSize                         // exceeds the limit declared by the form
	UploadPartial                          // only partially received
	UploadNoFile                           // no file was sent
	_                                      // reserved
	UploadNoTmpDir                         // temporary directory missing
	UploadCantWrite                        // temporary file could not be written
	UploadExtension                        // stopped by an extension/middleware
)

var uploadErrorText = map[UploadErrorCode]string{
	UploadOK:        "no error",
	UploadIniSize:   "the uploaded file exceeds the server size limit",
	UploadFormSize:  "the uploaded file exceeds the form size limit",
	UploadPartial:   "the uploaded file was only partially uploaded",
	UploadNoFile:    "no file was uploaded",
	UploadNoTmpDir:  "missing a temporary folder",
	UploadCantWrite: "failed to write file to disk",
	UploadExtension: "an extension stopped the file upload",
}

// String returns a human-readable description of the code.
func (c UploadErrorCode) String() string {
	if s, ok := uploadErrorText[c]; ok {
		return s
	}
	return "unknown upload error"
}

// RawUpload is the structural descriptor of one received upload.
type RawUpload struct {
	Name    string          `json:"name"`     // original client file name
	TmpName string          `json:"tmp_name"` // path of the received temporary file
	Size    int64           `json:"size"`
	Error   UploadErrorCode `json:"error"`
}

// UploadSet maps form field names to received uploads. It also remembers which
// temporary paths were written by the receiving layer itself, so that an arbitrary
// local path cannot be passed off as an upload.
type UploadSet struct {
	entries  map[string]RawUpload
	received map[string]struct{}
}

// NewUploadSet creates an empty UploadSet.
func NewUploadSet() *UploadSet {
	return &UploadSet{
		entries:  make(map[string]RawUpload),
		received: make(map[string]struct{}),
	}
}

// Add registers an upload under field and marks its temporary path as received.
func (s *UploadSet) Add(field string, u RawUpload) {
	s.entries[field] = u
	if u.TmpName != "" {
		s.received[filepath.Clean(u.TmpName)] = struct{}{}
	}
}

// Put registers a descriptor under field without marking its path as received.
// It is meant for descriptors that did not come from the receiving layer.
func (s *UploadSet) Put(field string, u RawUpload) {
	s.entries[field] = u
}

// Get returns the upload registered under field.
func (s *UploadSet) Get(field string) (RawUpload, bool) {
	if s == nil {
		return RawUpload{}, false
	}
	u, ok := s.entries[field]
	return u, ok
}

// Received reports whether path was written by the receiving layer.
func (s *UploadSet) Received(path string) bool {
	if s == nil || path == "" {
		return false
	}
	_, ok := s.received[filepath.Clean(path)]
	return ok
}
