package library

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newStorageKey builds the bucket key for an upload. Keys are partitioned by
// uploader and month so bucket listings stay navigable.
func newStorageKey(uploaderID uuid.UUID, fileName string, now time.Time) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("users/%s/%04d/%02d/%s.%s",
		uploaderID, now.Year(), int(now.Month()), uuid.NewString(), ext)
}

// thumbnailKeyFor derives the poster frame key for a video upload. The
// thumbnail lives in its own bucket under the same path with a jpg extension.
func thumbnailKeyFor(storageKey string) string {
	return strings.TrimSuffix(storageKey, path.Ext(storageKey)) + ".jpg"
}
