package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/aliskhannn/safe-uploader/internal/model"
)

var (
	// ErrConfigNotFound is returned when the profiles file is unset or missing.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid is returned when the profiles file cannot be parsed.
	ErrConfigInvalid = errors.New("config file is invalid")

	// ErrProfileNotFound is returned when the requested profile id is absent.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidProfileType is returned when a profile entry is not a mapping.
	ErrInvalidProfileType = errors.New("profile must be a mapping")

	// ErrInvalidProfile is returned when a profile mapping holds unusable values.
	ErrInvalidProfile = errors.New("invalid profile")
)

// keyDelimiter keeps profile ids containing dots addressable as a single key.
const keyDelimiter = "::"

// ProfileSource reads upload profiles from a configuration file.
// The file is parsed again on every lookup, so edits apply without a restart.
type ProfileSource struct {
	fs   afero.Fs
	path string
}

// NewProfileSource creates a ProfileSource for path on fs. A nil fs means the local filesystem.
func NewProfileSource(fs afero.Fs, path string) *ProfileSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &ProfileSource{fs: fs, path: path}
}

// Path returns the configuration file path.
func (s *ProfileSource) Path() string {
	return s.path
}

// Profile loads the configuration file and decodes the profile registered under id.
// Profile ids are matched case-insensitively.
func (s *ProfileSource) Profile(id string) (model.Profile, error) {
	if s.path == "" {
		return model.Profile{}, fmt.Errorf("%w: no configuration file set", ErrConfigNotFound)
	}

	if ok, err := afero.Exists(s.fs, s.path); err != nil || !ok {
		return model.Profile{}, fmt.Errorf("%w: %s", ErrConfigNotFound, s.path)
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetFs(s.fs)
	v.SetConfigFile(s.path)

	if err := v.ReadInConfig(); err != nil {
		return model.Profile{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, s.path, err)
	}

	rawProfiles := v.Get("profiles")
	if rawProfiles == nil {
		return model.Profile{}, fmt.Errorf("%w: profileId %s not found in %s", ErrProfileNotFound, id, s.path)
	}

	profiles, ok := asMapping(rawProfiles)
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: profiles must be a mapping in %s", ErrConfigInvalid, s.path)
	}

	raw, ok := profiles[strings.ToLower(id)]
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: profileId %s not found in %s", ErrProfileNotFound, id, s.path)
	}

	entry, ok := asMapping(raw)
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: profileId=%s, %T given", ErrInvalidProfileType, id, raw)
	}

	p, err := DecodeProfile(entry)
	if err != nil {
		return model.Profile{}, fmt.Errorf("profileId=%s: %w", id, err)
	}

	return p, nil
}

// DecodeProfile converts a loosely typed profile mapping into a model.Profile.
// Keys are matched case-insensitively. Unset keys keep their zero value and are
// filled in later by model.Profile.WithDefaults.
func DecodeProfile(raw map[string]any) (model.Profile, error) {
	m := lowerKeys(raw)

	var p model.Profile
	var err error

	if p.Dir, err = optionalString(m, "dir"); err != nil {
		return model.Profile{}, err
	}
	if p.File, err = optionalString(m, "file"); err != nil {
		return model.Profile{}, err
	}
	if p.MoveHandler, err = optionalString(m, "movehandler"); err != nil {
		return model.Profile{}, err
	}

	if v, ok := m["isimage"]; ok && v != nil {
		if p.IsImage, err = cast.ToBoolE(v); err != nil {
			return model.Profile{}, fmt.Errorf("%w: isImage: %v", ErrInvalidProfile, err)
		}
	}

	if p.AcceptedMimeTypes, err = decodeMimeTypes(m["acceptedmimetype"]); err != nil {
		return model.Profile{}, err
	}

	if v, ok := m["maxsize"]; ok {
		if p.MaxSize, err = decodeMaxSize(v); err != nil {
			return model.Profile{}, err
		}
	}

	if v, ok := m["thumbs"]; ok && v != nil {
		if p.Thumbs, err = decodeThumbs(v); err != nil {
			return model.Profile{}, err
		}
	}

	return p, nil
}

func decodeMimeTypes(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if !t {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: acceptedMimeType: true is not a mime type", ErrInvalidProfile)
	case string:
		if t == "" {
			return nil, nil
		}
		return []string{t}, nil
	default:
		types, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: acceptedMimeType: %v", ErrInvalidProfile, err)
		}
		return types, nil
	}
}

func decodeMaxSize(v any) (model.MaxSize, error) {
	switch t := v.(type) {
	case nil:
		return model.MaxSize{}, nil
	case bool:
		if !t {
			return model.NoSizeLimit(), nil
		}
		return model.MaxSize{}, fmt.Errorf("%w: maxSize: true is not a size", ErrInvalidProfile)
	case string:
		size, err := model.ParseMaxSize(t)
		if err != nil {
			return model.MaxSize{}, fmt.Errorf("%w: maxSize: %v", ErrInvalidProfile, err)
		}
		return size, nil
	default:
		n, err := cast.ToUint64E(v)
		if err != nil {
			return model.MaxSize{}, fmt.Errorf("%w: maxSize: %v", ErrInvalidProfile, err)
		}
		return model.SizeLimit(n), nil
	}
}

func decodeThumbs(v any) ([]model.ThumbSpec, error) {
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("%w: thumbs must be a list: %v", ErrInvalidProfile, err)
	}

	thumbs := make([]model.ThumbSpec, 0, len(items))
	for i, item := range items {
		raw, ok := asMapping(item)
		if !ok {
			return nil, fmt.Errorf("%w: thumbs[%d] must be a mapping", ErrInvalidProfile, i)
		}
		m := lowerKeys(raw)

		var spec model.ThumbSpec
		if spec.MaxWidth, err = cast.ToIntE(m["maxwidth"]); err != nil || spec.MaxWidth <= 0 {
			return nil, fmt.Errorf("%w: thumbs[%d].maxWidth must be a positive integer", ErrInvalidProfile, i)
		}
		if spec.MaxHeight, err = cast.ToIntE(m["maxheight"]); err != nil || spec.MaxHeight <= 0 {
			return nil, fmt.Errorf("%w: thumbs[%d].maxHeight must be a positive integer", ErrInvalidProfile, i)
		}
		if spec.File, err = optionalString(m, "file"); err != nil {
			return nil, err
		}
		if spec.Dir, err = optionalString(m, "dir"); err != nil {
			return nil, err
		}
		if spec.Watermark, err = optionalString(m, "watermark"); err != nil {
			return nil, err
		}

		thumbs = append(thumbs, spec)
	}

	return thumbs, nil
}

func optionalString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidProfile, key, err)
	}
	return s, nil
}

// asMapping accepts only decoded mappings. Strings are never parsed as JSON.
func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[cast.ToString(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
