package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/closetapp/closet-sync/internal/shared"
	"github.com/closetapp/closet-sync/internal/syncwire"
)

// S3BlobStore holds image binaries in the same bucket as the account
// documents, under the {account}/images/{hash} prefix.
type S3BlobStore struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	presignTTL time.Duration
}

func NewS3BlobStore(client *s3.Client, bucket string, presignTTL time.Duration) *S3BlobStore {
	return &S3BlobStore{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     bucket,
		presignTTL: presignTTL,
	}
}

func (s *S3BlobStore) Put(ctx context.Context, account, hash string, data []byte, contentType string) (string, error) {
	if hashOf(data) != hash {
		return "", shared.ErrHashMismatch
	}
	ref := syncwire.ImageRef(account, hash)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(ref),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put image %s: %w", ref, err)
	}
	return ref, nil
}

func (s *S3BlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("get image %s: %w", ref, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3BlobStore) Exists(ctx context.Context, account, hash string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(syncwire.ImageRef(account, hash)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, account, hash string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(syncwire.ImageRef(account, hash)),
	})
	return err
}

func (s *S3BlobStore) PresignPut(ctx context.Context, account, hash, contentType string, size int64) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(syncwire.ImageRef(account, hash)),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign image put: %w", err)
	}
	return req.URL, nil
}

func (s *S3BlobStore) Usage(ctx context.Context, account string) (int64, error) {
	var total int64
	prefix := account + "/images/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("list images: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Size != nil {
				total += *obj.Size
			}
		}
	}
	return total, nil
}
