package enums

import (
	"fmt"
	"strings"
)

// MediaKind classifies an uploaded object by its declared mime type.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

var validMediaKinds = []MediaKind{
	MediaKindImage,
	MediaKindVideo,
}

// String returns the literal string for the kind.
func (m MediaKind) String() string {
	return string(m)
}

// IsValid reports whether the kind is known.
func (m MediaKind) IsValid() bool {
	for _, candidate := range validMediaKinds {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMediaKind converts raw input into a MediaKind.
func ParseMediaKind(value string) (MediaKind, error) {
	for _, candidate := range validMediaKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid media kind %q", value)
}

// MediaKindForMime maps a mime type to the kind it belongs to.
func MediaKindForMime(mimeType string) (MediaKind, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MediaKindImage, nil
	case strings.HasPrefix(mimeType, "video/"):
		return MediaKindVideo, nil
	default:
		return "", fmt.Errorf("unsupported mime type %q", mimeType)
	}
}
