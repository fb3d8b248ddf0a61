package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStorageUpload(t *testing.T) {
	root := t.TempDir()
	d := NewDiskStorage(root, "https://recycle.example.com/", 4, nil)
	ctx := context.Background()

	path, err := d.Upload(ctx, BucketRequestImages, "x.png", []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, "request-images/x.png", path)

	data, err := os.ReadFile(filepath.Join(root, "request-images", "x.png"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	_, err = d.Upload(ctx, BucketRequestImages, "x.png", []byte("z"))
	assert.Equal(t, KindUpload, KindOf(err))

	_, err = d.Upload(ctx, BucketRequestImages, "big.png", []byte("abcde"))
	assert.Equal(t, KindUpload, KindOf(err))

	for _, key := range []string{"", "..", "../escape.png", `a\b.png`} {
		_, err = d.Upload(ctx, BucketRequestImages, key, []byte("a"))
		assert.Equal(t, KindUpload, KindOf(err), key)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = d.Upload(cancelled, BucketRequestImages, "late.png", []byte("a"))
	assert.Equal(t, KindUpload, KindOf(err))
}

func TestDiskStoragePublicURL(t *testing.T) {
	d := NewDiskStorage(t.TempDir(), "https://recycle.example.com/", 0, nil)
	assert.Equal(t, "https://recycle.example.com/storage/v1/object/public/request-images/x.png", d.PublicURL("request-images/x.png"))
	assert.Equal(t, "", d.PublicURL(""))
}

func TestDiskStorageRemove(t *testing.T) {
	root := t.TempDir()
	d := NewDiskStorage(root, "", 0, nil)
	path, err := d.Upload(context.Background(), BucketRequestImages, "x.png", []byte("a"))
	require.NoError(t, err)

	d.Remove([]string{path, "request-images/never-existed.png", "../../etc/passwd"})

	_, err = os.Stat(filepath.Join(root, "request-images", "x.png"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "", d.LocalPath("../../etc/passwd"))
}
