package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutAndDelete(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocal(root, "/api/receipts/", 1)
	require.NoError(t, err)

	res, err := s.Put(context.Background(), strings.NewReader("%PDF-1.4 test"), PutInput{
		Filename: "../../etc/receipt.PDF",
		Owner:    "admin-1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Key, "admin-1/"))
	assert.True(t, strings.HasSuffix(res.Key, ".pdf"))
	assert.Equal(t, "/api/receipts/"+res.Key, res.URL)
	assert.EqualValues(t, len("%PDF-1.4 test"), res.Size)

	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(res.Key)))
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), res.Key))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(res.Key)))
	assert.True(t, os.IsNotExist(err))
}

func TestLocal_RejectsOversized(t *testing.T) {
	s, err := NewLocal(t.TempDir(), "/r", 1)
	require.NoError(t, err)

	big := strings.Repeat("x", 1024*1024+10)
	_, err = s.Put(context.Background(), strings.NewReader(big), PutInput{Filename: "a.png"})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestParseS3Ref(t *testing.T) {
	bucket, key, ok := ParseS3Ref("s3://media/videos/original.mp4")
	require.True(t, ok)
	assert.Equal(t, "media", bucket)
	assert.Equal(t, "videos/original.mp4", key)

	for _, ref := range []string{"https://cdn.example/v.mp4", "s3://bucket-only", "s3:///key"} {
		_, _, ok := ParseS3Ref(ref)
		assert.False(t, ok, ref)
	}
}

func TestPassthroughSigner(t *testing.T) {
	url, err := PassthroughSigner{}.SignURL(context.Background(), "https://cdn.example/v.mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/v.mp4", url)
}
