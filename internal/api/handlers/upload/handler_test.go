package upload_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/safe-uploader/internal/api/handlers/upload"
	"github.com/aliskhannn/safe-uploader/internal/api/router"
	"github.com/aliskhannn/safe-uploader/internal/config"
	"github.com/aliskhannn/safe-uploader/internal/storage/file"
	"github.com/aliskhannn/safe-uploader/internal/uploader"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

const profiles = `
profiles:
  avatar:
    dir: /avatars/{user}
    acceptedMimeType: [image/png, image/jpeg]
    maxSize: 1K
`

type response struct {
	Result  *upload.Result `json:"result"`
	Message string         `json:"message"`
}

func newServer(t *testing.T, mode uploader.Mode) (http.Handler, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/profiles.yml", []byte(profiles), 0o644))

	files := file.NewStorage(fs)
	u := uploader.New(files, nil, uploader.WithProfileSource(config.NewProfileSource(fs, "/etc/profiles.yml")))
	h := upload.NewHandler(u, files, upload.Config{TmpDir: "/tmp/incoming", Mode: mode})

	return router.Setup(h), fs
}

func multipartBody(t *testing.T, field, filename string, content []byte, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return body, w.FormDataContentType()
}

func do(t *testing.T, srv http.Handler, target string, body *bytes.Buffer, contentType string) (*httptest.ResponseRecorder, response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func tmpFiles(t *testing.T, fs afero.Fs) []string {
	t.Helper()

	var names []string
	if ok, _ := afero.DirExists(fs, "/tmp/incoming"); !ok {
		return names
	}
	entries, err := afero.ReadDir(fs, "/tmp/incoming")
	require.NoError(t, err)
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUpload(t *testing.T) {
	t.Parallel()
	srv, fs := newServer(t, uploader.Raise)

	body, ct := multipartBody(t, "file", "me.png", pngHeader, map[string]string{"user": "ann"})
	rec, resp := do(t, srv, "/api/upload/avatar", body, ct)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "/avatars/ann/me.png", resp.Result.Path)
	assert.Equal(t, []string{"/avatars/ann/me.png"}, resp.Result.Paths)

	data, err := afero.ReadFile(fs, "/avatars/ann/me.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Empty(t, tmpFiles(t, fs))
}

func TestUpload_CustomField(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, uploader.Raise)

	body, ct := multipartBody(t, "photo", "me.png", pngHeader, map[string]string{"user": "bob"})
	rec, resp := do(t, srv, "/api/upload/avatar?field=photo", body, ct)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/avatars/bob/me.png", resp.Result.Path)
}

func TestUpload_Rejected(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		target  string
		field   string
		content []byte
		code    int
	}{
		{name: "mime type", target: "/api/upload/avatar", field: "file", content: []byte("hello"), code: http.StatusUnsupportedMediaType},
		{name: "size", target: "/api/upload/avatar", field: "file", content: append(append([]byte{}, pngHeader...), make([]byte, 2048)...), code: http.StatusRequestEntityTooLarge},
		{name: "missing file", target: "/api/upload/avatar", code: http.StatusBadRequest},
		{name: "unknown profile", target: "/api/upload/banner", field: "file", content: pngHeader, code: http.StatusNotFound},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv, fs := newServer(t, uploader.Raise)

			body, ct := multipartBody(t, tc.field, "me.png", tc.content, map[string]string{"user": "ann"})
			rec, resp := do(t, srv, tc.target, body, ct)

			assert.Equal(t, tc.code, rec.Code)
			assert.NotEmpty(t, resp.Message)
			assert.Nil(t, resp.Result)
			assert.Empty(t, tmpFiles(t, fs))
		})
	}
}

func TestUpload_CollectMode(t *testing.T) {
	t.Parallel()
	srv, _ := newServer(t, uploader.Raise)

	content := append([]byte("text "), make([]byte, 2048)...)
	body, ct := multipartBody(t, "file", "notes.txt", content, nil)
	rec, resp := do(t, srv, "/api/upload/avatar?mode=collect", body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Errors, 2)
	assert.Empty(t, resp.Result.Paths)
}
