package ai

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/xnote/internal/storage"
)

// ImageDir is the images directory inside the data directory.
const ImageDir = "images"

var imageExt = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ImageStore persists generated images under <dataDir>/images.
type ImageStore struct {
	fs  storage.Provider
	now func() time.Time
}

// NewImageStore creates an image store on the data-directory provider.
func NewImageStore(fs storage.Provider) *ImageStore {
	return &ImageStore{fs: fs, now: time.Now}
}

// Save writes data as images/<epoch-ms>-<random>.<ext> and returns the
// absolute path.
func (s *ImageStore) Save(mimeType string, data []byte) (string, error) {
	ext, ok := imageExt[strings.ToLower(mimeType)]
	if !ok {
		ext = "png"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	rel := filepath.Join(ImageDir, strconv.FormatInt(s.now().UnixMilli(), 10)+"-"+suffix+"."+ext)

	if err := s.fs.Write(rel, data); err != nil {
		return "", fmt.Errorf("ai: save image: %w", err)
	}
	return s.fs.Abs(rel)
}

// DecodeImage accepts a data URI ("data:image/png;base64,...") or bare
// base64 and returns the MIME type and bytes. Bare base64 is taken as PNG.
func DecodeImage(src string) (string, []byte, error) {
	mimeType := "image/png"
	payload := strings.TrimSpace(src)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found {
			return "", nil, fmt.Errorf("ai: malformed data uri")
		}
		meta, _, _ := strings.Cut(header, ";")
		if meta != "" {
			mimeType = meta
		}
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("ai: decode image: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("ai: empty image")
	}
	return mimeType, data, nil
}
