package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"engdocs-qa-platform/utils"
)

// ObjectStore wraps the S3-compatible bucket holding uploaded originals.
type ObjectStore struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucket     string
	presignTTL time.Duration
}

func NewObjectStore(client *s3.Client, bucket string, presignTTL time.Duration) *ObjectStore {
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &ObjectStore{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     bucket,
		presignTTL: presignTTL,
	}
}

// ObjectKey builds the canonical key for an uploaded document. The
// group prefix keeps per-group listing cheap; the hash prefix makes the
// key stable under display-name collisions.
func ObjectKey(groupID int64, contentHash, filename string) string {
	return fmt.Sprintf("group_%d/%s_%s", groupID, contentHash, utils.SafeFilename(filename))
}

// Put uploads one object.
func (s *ObjectStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return utils.Transient("uploading object", err)
	}
	return nil
}

// GetToFile downloads an object to a local path.
func (s *ObjectStore) GetToFile(ctx context.Context, key, path string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return utils.Transient("downloading object", err)
	}
	defer out.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return utils.Transient("writing object to disk", err)
	}
	return nil
}

// Stat reports whether an object exists.
func (s *ObjectStore) Stat(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// HeadObject has no typed not-found error distinct from access
		// failures across S3-compatible backends; treat any error as
		// absent and let Get surface real faults.
		return false, nil
	}
	return true, nil
}

// Delete removes an object. Deleting an absent key is not an error.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return utils.Transient("deleting object", err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for the original file.
func (s *ObjectStore) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", utils.Transient("presigning object URL", err)
	}
	return req.URL, nil
}
