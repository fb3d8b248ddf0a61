package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// PublicObjectPrefix is the URL path under which stored objects are served.
const PublicObjectPrefix = "/storage/v1/object/public/"

// DiskStorage keeps bucket objects as files under Root/<bucket>/<key>.
type DiskStorage struct {
	Root     string
	BaseURL  string
	MaxBytes int64
	log      *zap.SugaredLogger
}

func NewDiskStorage(root, baseURL string, maxBytes int64, log *zap.SugaredLogger) *DiskStorage {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DiskStorage{Root: root, BaseURL: strings.TrimRight(baseURL, "/"), MaxBytes: maxBytes, log: log}
}

// Upload writes data to bucket/key and returns the bucket-prefixed path.
// Existing objects are never overwritten.
func (d *DiskStorage) Upload(ctx context.Context, bucket, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewError(KindUpload, "upload", "Upload cancelled", err)
	}
	if !validSegment(bucket) || !validSegment(key) {
		return "", NewError(KindUpload, "upload", "Invalid object name", nil)
	}
	if d.MaxBytes > 0 && int64(len(data)) > d.MaxBytes {
		return "", NewError(KindUpload, "upload", fmt.Sprintf("Object exceeds %d bytes", d.MaxBytes), nil)
	}

	dir := filepath.Join(d.Root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", NewError(KindUpload, "upload", "Storage unavailable", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", NewError(KindUpload, "upload", "The resource already exists", err)
		}
		return "", NewError(KindUpload, "upload", "Storage unavailable", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", NewError(KindUpload, "upload", "Failed to write object", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", NewError(KindUpload, "upload", "Failed to write object", err)
	}
	return bucket + "/" + key, nil
}

// PublicURL resolves a bucket-prefixed path to its public URL. "" stays "".
func (d *DiskStorage) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	return d.BaseURL + PublicObjectPrefix + strings.TrimLeft(path, "/")
}

// LocalPath maps a bucket-prefixed path to its file, or "" when the path is malformed.
func (d *DiskStorage) LocalPath(path string) string {
	bucket, key, ok := strings.Cut(strings.TrimLeft(path, "/"), "/")
	if !ok || !validSegment(bucket) || !validSegment(key) {
		return ""
	}
	return filepath.Join(d.Root, bucket, key)
}

// Remove deletes stored objects, ignoring ones already gone.
func (d *DiskStorage) Remove(paths []string) {
	for _, p := range paths {
		local := d.LocalPath(p)
		if local == "" {
			continue
		}
		if err := os.Remove(local); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.log.Warnw("failed to remove stored object", "path", p, "err", err)
		}
	}
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// imageTypes are the photo formats accepted and served inline, by extension.
var imageTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ImageType returns the content type of an image file name by its
// extension, or false for anything else.
func ImageType(name string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	ct, ok := imageTypes[ext]
	return ct, ok
}
