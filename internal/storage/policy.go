package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Bucket names exposed to clients.
const (
	BucketPostImages = "post-images"
	BucketMedia      = "media"
)

const megabyte = 1 << 20

// Policy is the size and type allowance for one bucket.
type Policy struct {
	Name          string
	MaxImageBytes int64
	MaxVideoBytes int64
	ImageTypes    []string
	VideoTypes    []string
	// TranscodeWebP downscales still images and re-encodes them as WebP.
	TranscodeWebP bool
}

var stillImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// DefaultPolicies returns the bucket policies keyed by bucket name.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		BucketPostImages: {
			Name:          BucketPostImages,
			MaxImageBytes: 5 * megabyte,
			ImageTypes:    stillImageTypes,
			TranscodeWebP: true,
		},
		BucketMedia: {
			Name:          BucketMedia,
			MaxImageBytes: 10 * megabyte,
			MaxVideoBytes: 50 * megabyte,
			ImageTypes:    stillImageTypes,
			VideoTypes:    []string{"video/mp4", "video/webm", "video/quicktime"},
		},
	}
}

// Allows reports whether contentType is accepted and the size limit that applies to it.
func (p Policy) Allows(contentType string) (bool, int64) {
	for _, t := range p.ImageTypes {
		if t == contentType {
			return true, p.MaxImageBytes
		}
	}
	for _, t := range p.VideoTypes {
		if t == contentType {
			return true, p.MaxVideoBytes
		}
	}
	return false, 0
}

// MaxBytes is the largest upload any type in the bucket may have.
func (p Policy) MaxBytes() int64 {
	if p.MaxVideoBytes > p.MaxImageBytes {
		return p.MaxVideoBytes
	}
	return p.MaxImageBytes
}

var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".qt":   "video/quicktime",
}

// DetectContentType sniffs the content type from the first bytes of content.
// Video containers the sniffer does not know fall back to the file extension.
func DetectContentType(filename string, content []byte) string {
	detected := normalizeContentType(http.DetectContentType(content))
	if detected != "application/octet-stream" {
		return detected
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := videoExtensions[ext]; ok {
		return t
	}
	return detected
}

// ExtensionFor returns the file extension used when storing contentType.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
