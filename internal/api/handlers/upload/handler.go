package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/safe-uploader/internal/api/respond"
	"github.com/aliskhannn/safe-uploader/internal/model"
	"github.com/aliskhannn/safe-uploader/internal/uploader"
)

// service runs an upload profile against a received upload set.
type service interface {
	UploadRaw(ctx context.Context, profileID, field string, set *model.UploadSet, opts uploader.Options) (uploader.RunResult, error)
}

// fileStorage writes received uploads to the temporary directory.
type fileStorage interface {
	Save(dir, filename string, src io.Reader) (string, int64, error)
	Exists(path string) bool
	Delete(path string) error
}

// Config holds the handler settings.
type Config struct {
	TmpDir    string        // where received uploads are written before validation
	MaxMemory int64         // multipart bytes kept in memory
	Mode      uploader.Mode // default error mode, overridable with ?mode=
}

// Handler provides the HTTP upload endpoint.
type Handler struct {
	service service
	files   fileStorage
	cfg     Config
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service, files fileStorage, cfg Config) *Handler {
	if cfg.MaxMemory <= 0 {
		cfg.MaxMemory = 10 << 20
	}
	return &Handler{service: s, files: files, cfg: cfg}
}

// Result is the JSON view of a run.
type Result struct {
	Path   string   `json:"path,omitempty"`
	Paths  []string `json:"paths"`
	URL    string   `json:"url,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

func newResult(res uploader.RunResult) Result {
	paths := res.UploadedFilePaths()
	if paths == nil {
		paths = []string{}
	}

	return Result{
		Path:   res.UploadedFilePath(),
		Paths:  paths,
		URL:    res.RealURL(),
		Errors: res.Messages(),
	}
}

// Upload handles the HTTP request for uploading a file with the profile named in the path.
// The file is read from the "file" form field, or the one named by ?field=. Every
// other form value becomes part of the payload used by the profile templates.
func (h *Handler) Upload(c *ginext.Context) {
	profileID := c.Param("profile")
	field := c.DefaultQuery("field", uploader.DefaultField)

	mode := h.cfg.Mode
	switch c.Query("mode") {
	case "collect":
		mode = uploader.Collect
	case "raise":
		mode = uploader.Raise
	}

	// Parse the multipart form.
	if err := c.Request.ParseMultipartForm(h.cfg.MaxMemory); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to parse multipart form")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	set := model.NewUploadSet()

	// Write the uploaded file to the temporary directory. A missing field is left to
	// the structural checks of the uploader.
	file, header, err := c.Request.FormFile(field)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		zlog.Logger.Warn().Str("field", field).Msg("no file in request")
	case err != nil:
		zlog.Logger.Err(err).Msg("failed to read the file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to retrieve the file"))
		return
	default:
		defer file.Close()

		tmp, n, err := h.files.Save(h.cfg.TmpDir, uuid.NewString(), file)
		if tmp != "" {
			// Whatever was not placed is removed with the request.
			defer h.cleanup(tmp)
		}
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to store the upload")
			set.Add(field, model.RawUpload{Name: header.Filename, TmpName: tmp, Error: model.UploadCantWrite})
			break
		}

		zlog.Logger.Debug().Str("filename", header.Filename).Int64("size", n).Msg("upload received")
		set.Add(field, model.RawUpload{Name: header.Filename, TmpName: tmp, Size: n})
	}

	res, err := h.service.UploadRaw(c.Request.Context(), profileID, field, set, uploader.Options{
		Mode:    mode,
		Payload: payload(c.Request.MultipartForm.Value),
	})
	if err != nil {
		respond.Fail(c, status(err), err)
		return
	}

	if errs := res.Errors(); len(errs) > 0 {
		respond.Result(c, status(errs[0]), newResult(res))
		return
	}

	respond.Created(c, newResult(res))
}

func (h *Handler) cleanup(path string) {
	if !h.files.Exists(path) {
		return
	}
	if err := h.files.Delete(path); err != nil {
		zlog.Logger.Warn().Err(err).Str("path", path).Msg("failed to remove temporary upload")
	}
}

// payload keeps the first value of every form field.
func payload(values map[string][]string) model.Payload {
	p := make(model.Payload, len(values))
	for k, v := range values {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p
}

// status maps an upload error to an HTTP status code.
func status(err error) int {
	switch {
	case errors.Is(err, uploader.ErrStructuralUpload):
		return http.StatusBadRequest
	case errors.Is(err, uploader.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, uploader.ErrSizeExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, uploader.ErrMimeTypeNotAllowed):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
