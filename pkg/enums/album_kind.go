package enums

import "fmt"

// AlbumKind distinguishes a user's auto-created main album from group albums.
type AlbumKind string

const (
	AlbumKindMain  AlbumKind = "main"
	AlbumKindGroup AlbumKind = "group"
)

var validAlbumKinds = []AlbumKind{
	AlbumKindMain,
	AlbumKindGroup,
}

// String returns the literal string for the kind.
func (a AlbumKind) String() string {
	return string(a)
}

// IsValid reports whether the kind is known.
func (a AlbumKind) IsValid() bool {
	for _, candidate := range validAlbumKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlbumKind converts raw input into an AlbumKind.
func ParseAlbumKind(value string) (AlbumKind, error) {
	for _, candidate := range validAlbumKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid album kind %q", value)
}
