package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// minioAPI is the subset of *minio.Client the backend uses.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

type minioClient struct{ c *minio.Client }

func (w minioClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}

func (w minioClient) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}

func (w minioClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (w minioClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (w minioClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return w.c.RemoveObject(ctx, bucketName, objectName, opts)
}

func (w minioClient) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return w.c.StatObject(ctx, bucketName, objectName, opts)
}

// MinIOBackend keeps blobs as objects in an S3-compatible bucket.
type MinIOBackend struct {
	api    minioAPI
	bucket string
}

func NewMinIOBackend(ctx context.Context, client *minio.Client, bucket string) (*MinIOBackend, error) {
	return newMinIOBackend(ctx, minioClient{c: client}, bucket)
}

func newMinIOBackend(ctx context.Context, api minioAPI, bucket string) (*MinIOBackend, error) {
	b := &MinIOBackend{api: api, bucket: bucket}

	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
	}

	return b, nil
}

func (b *MinIOBackend) Put(ctx context.Context, storagePath string, src io.Reader, size int64, contentType string) error {
	key, err := cleanStoragePath(storagePath)
	if err != nil {
		return err
	}

	_, err = b.api.PutObject(ctx, b.bucket, key, src, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("uploading blob object: %w", err)
	}
	return nil
}

// Open stats the object first because GetObject only reports a missing key
// on the first read.
func (b *MinIOBackend) Open(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	key, err := cleanStoragePath(storagePath)
	if err != nil {
		return nil, err
	}

	if _, err := b.api.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stating blob object: %w", err)
	}

	obj, err := b.api.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting blob object: %w", err)
	}
	return obj, nil
}

func (b *MinIOBackend) Delete(ctx context.Context, storagePath string) error {
	key, err := cleanStoragePath(storagePath)
	if err != nil {
		return err
	}

	if err := b.api.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting blob object: %w", err)
	}
	return nil
}
