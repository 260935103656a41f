package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinio implements minioAPI in memory.
type fakeMinio struct {
	buckets   map[string]bool
	objects   map[string][]byte
	types     map[string]string
	existsErr error
}

func newFakeMinio() *fakeMinio {
	return &fakeMinio{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeMinio) BucketExists(_ context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], f.existsErr
}

func (f *fakeMinio) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeMinio) PutObject(_ context.Context, _ string, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[key] = data
	f.types[key] = opts.ContentType
	return minio.UploadInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeMinio) GetObject(_ context.Context, _ string, key string, _ minio.GetObjectOptions) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.objects[key])), nil
}

func (f *fakeMinio) RemoveObject(_ context.Context, _ string, key string, _ minio.RemoveObjectOptions) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeMinio) StatObject(_ context.Context, _ string, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	data, ok := f.objects[key]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	return minio.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func TestMinIOBackendCreatesBucket(t *testing.T) {
	api := newFakeMinio()

	_, err := newMinIOBackend(context.Background(), api, "pictures")
	require.NoError(t, err)
	assert.True(t, api.buckets["pictures"])
}

func TestMinIOBackendBucketCheckError(t *testing.T) {
	api := newFakeMinio()
	api.existsErr = errors.New("boom")

	b, err := newMinIOBackend(context.Background(), api, "pictures")
	assert.Nil(t, b)
	assert.ErrorContains(t, err, "checking bucket pictures")
}

func TestMinIOBackendPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	api := newFakeMinio()
	b, err := newMinIOBackend(ctx, api, "pictures")
	require.NoError(t, err)

	require.NoError(t, b.Put(ctx, "profile_picture/ab/blb_1", bytes.NewReader([]byte("png")), 3, "image/png"))
	assert.Equal(t, "image/png", api.types["profile_picture/ab/blb_1"])

	rc, err := b.Open(ctx, "profile_picture/ab/blb_1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, b.Delete(ctx, "profile_picture/ab/blb_1"))
	_, err = b.Open(ctx, "profile_picture/ab/blb_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMinIOBackendRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	b, err := newMinIOBackend(ctx, newFakeMinio(), "pictures")
	require.NoError(t, err)

	assert.ErrorIs(t, b.Put(ctx, "../x", bytes.NewReader(nil), 0, ""), ErrInvalidPath)
}

func TestServiceWithMinIOBackend(t *testing.T) {
	ctx := context.Background()
	api := newFakeMinio()
	backend, err := newMinIOBackend(ctx, api, "pictures")
	require.NoError(t, err)
	svc, err := NewService(backend, 1024*1024)
	require.NoError(t, err)

	stored, err := svc.Save(ctx, KindProfilePicture, bytes.NewReader(tinyPNG(t)))
	require.NoError(t, err)
	assert.Contains(t, api.objects, stored.StoragePath)
}
