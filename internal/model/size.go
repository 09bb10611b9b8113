package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ErrInvalidSize is returned when a human-readable size cannot be parsed.
var ErrInvalidSize = errors.New("invalid size")

// MaxSize is the size limit of a profile. The zero value is "unset" and is
// replaced by DefaultMaxSize when defaults are merged.
type MaxSize struct {
	bytes    uint64
	set      bool
	disabled bool
}

// NoSizeLimit returns a MaxSize that disables the size check.
func NoSizeLimit() MaxSize {
	return MaxSize{set: true, disabled: true}
}

// SizeLimit returns a MaxSize of exactly n bytes.
func SizeLimit(n uint64) MaxSize {
	return MaxSize{bytes: n, set: true}
}

// ParseMaxSize converts a human-readable size such as "2M", "512K" or "1.5GiB" into a MaxSize.
//
// Unit prefixes are binary: 1K = 1024, 1M = 1024², 1G = 1024³. A bare number is a byte count.
func ParseMaxSize(s string) (MaxSize, error) {
	n, err := ParseBytes(s)
	if err != nil {
		return MaxSize{}, err
	}

	return SizeLimit(n), nil
}

// ParseBytes parses a human-readable size using binary multipliers.
func ParseBytes(s string) (uint64, error) {
	normalized := normalizeUnit(strings.TrimSpace(s))
	if normalized == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidSize)
	}

	n, err := humanize.ParseBytes(normalized)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSize, s, err)
	}

	return n, nil
}

// normalizeUnit rewrites SI-looking suffixes ("M", "MB") into their IEC form ("MiB")
// so that humanize applies binary multipliers.
func normalizeUnit(s string) string {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			i--
			continue
		}
		break
	}

	number, unit := strings.TrimSpace(s[:i]), strings.ToLower(s[i:])
	switch unit {
	case "k", "kb", "kib":
		return number + "KiB"
	case "m", "mb", "mib":
		return number + "MiB"
	case "g", "gb", "gib":
		return number + "GiB"
	case "t", "tb", "tib":
		return number + "TiB"
	case "p", "pb", "pib":
		return number + "PiB"
	default:
		return s
	}
}

// IsSet reports whether the limit was configured, either as a byte count or disabled.
func (m MaxSize) IsSet() bool { return m.set }

// Disabled reports whether the size check is switched off.
func (m MaxSize) Disabled() bool { return m.disabled }

// Bytes returns the limit in bytes. It is meaningless when the check is disabled.
func (m MaxSize) Bytes() uint64 { return m.bytes }

// String renders the limit for logs and messages.
func (m MaxSize) String() string {
	switch {
	case !m.set:
		return "unset"
	case m.disabled:
		return "false"
	default:
		return humanize.IBytes(m.bytes)
	}
}

// MarshalJSON renders a disabled limit as false, an unset one as null and any other limit as its byte count.
func (m MaxSize) MarshalJSON() ([]byte, error) {
	if !m.set {
		return []byte("null"), nil
	}
	if m.disabled {
		return []byte("false"), nil
	}
	return fmt.Appendf(nil, "%d", m.bytes), nil
}
