package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/safe-uploader/internal/model"
)

func TestParseBytes(t *testing.T) {
	t.Parallel()

	cases := map[string]uint64{
		"1K":     1024,
		"2M":     2 * 1024 * 1024,
		"1G":     1024 * 1024 * 1024,
		"3mb":    3 * 1024 * 1024,
		"1.5KiB": 1536,
		"512":    512,
		" 4 M ":  4 * 1024 * 1024,
	}
	for in, want := range cases {
		got, err := model.ParseBytes(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := model.ParseBytes("lots")
	require.ErrorIs(t, err, model.ErrInvalidSize)

	_, err = model.ParseBytes("")
	require.ErrorIs(t, err, model.ErrInvalidSize)
}

func TestMaxSize(t *testing.T) {
	t.Parallel()

	var unset model.MaxSize
	assert.False(t, unset.IsSet())

	off := model.NoSizeLimit()
	assert.True(t, off.IsSet())
	assert.True(t, off.Disabled())
	assert.Equal(t, "false", off.String())

	limit := model.SizeLimit(2048)
	assert.False(t, limit.Disabled())
	assert.Equal(t, uint64(2048), limit.Bytes())
	assert.Equal(t, "2.0 KiB", limit.String())
}

func TestProfile_WithDefaults(t *testing.T) {
	t.Parallel()

	merged := model.Profile{}.WithDefaults()
	assert.Equal(t, model.DefaultDir, merged.Dir)
	assert.Equal(t, uint64(2*1024*1024), merged.MaxSize.Bytes())
	assert.Nil(t, merged.AcceptedMimeTypes)
	assert.False(t, merged.IsImage)

	custom := model.Profile{
		Dir:               "/data",
		MaxSize:           model.NoSizeLimit(),
		AcceptedMimeTypes: []string{"image/*"},
		Thumbs:            []model.ThumbSpec{{MaxWidth: 10, MaxHeight: 10}},
	}.WithDefaults()
	assert.Equal(t, "/data", custom.Dir)
	assert.True(t, custom.MaxSize.Disabled())
	assert.Equal(t, []string{"image/*"}, custom.AcceptedMimeTypes)
	assert.Len(t, custom.Thumbs, 1)

	data, err := json.Marshal(custom)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"maxSize":false`)
}

func TestPayload(t *testing.T) {
	t.Parallel()

	var empty model.Payload
	withFile := empty.With(model.FileKey, "a.png")
	assert.Nil(t, empty)
	assert.Equal(t, "a.png", withFile[model.FileKey])

	orig := model.Payload{"k": "v"}
	clone := orig.Clone()
	clone["k"] = "changed"
	assert.Equal(t, "v", orig["k"])
}

func TestUploadSet(t *testing.T) {
	t.Parallel()

	set := model.NewUploadSet()
	set.Add("file", model.RawUpload{Name: "a.png", TmpName: "/tmp/up/1", Size: 3})
	set.Put("forged", model.RawUpload{Name: "b.png", TmpName: "/etc/passwd", Size: 3})

	u, ok := set.Get("file")
	require.True(t, ok)
	assert.Equal(t, "a.png", u.Name)
	assert.True(t, set.Received("/tmp/up/1"))
	assert.True(t, set.Received("/tmp/up/../up/1"))

	_, ok = set.Get("missing")
	assert.False(t, ok)
	assert.False(t, set.Received("/etc/passwd"))
	forged, ok := set.Get("forged")
	require.True(t, ok)
	assert.Equal(t, "/etc/passwd", forged.TmpName)

	var nilSet *model.UploadSet
	_, ok = nilSet.Get("file")
	assert.False(t, ok)
	assert.False(t, nilSet.Received("/tmp/up/1"))
}

func TestUploadErrorCode_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "no error", model.UploadOK.String())
	assert.Equal(t, "the uploaded file was only partially uploaded", model.UploadPartial.String())
	assert.Equal(t, "unknown upload error", model.UploadErrorCode(42).String())
}
