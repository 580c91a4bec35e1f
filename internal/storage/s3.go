package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/akarpov/docsync/internal/config"
)

// S3Storage talks to any S3-compatible object store (AWS, Yandex, minio)
// through aws-sdk-go-v2.
type S3Storage struct {
	client *s3.Client
}

func NewS3Storage(ctx context.Context, cfg config.StorageConfig) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{client: client}, nil
}

// NewS3StorageFromClient wraps an existing client, mainly for tests.
func NewS3StorageFromClient(client *s3.Client) *S3Storage {
	return &S3Storage{client: client}
}

func (s *S3Storage) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) (*ObjectMeta, error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return nil, fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}

	meta := &ObjectMeta{ContentType: contentType}
	if out.ETag != nil {
		meta.ETag = strings.Trim(*out.ETag, `"`)
	}
	if out.VersionId != nil {
		meta.VersionID = *out.VersionId
	}
	return meta, nil
}

func (s *S3Storage) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// DeleteObject on a missing key already succeeds in S3; anything
		// surfacing here is a real failure.
		return fmt.Errorf("delete s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3Storage) Head(ctx context.Context, bucket, key string) (*ObjectMeta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("head s3://%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("head s3://%s/%s: %w", bucket, key, err)
	}

	meta := &ObjectMeta{}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.ContentType != nil {
		meta.ContentType = *out.ContentType
	}
	if out.ETag != nil {
		meta.ETag = strings.Trim(*out.ETag, `"`)
	}
	if out.VersionId != nil {
		meta.VersionID = *out.VersionId
	}
	return meta, nil
}

func (s *S3Storage) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{}
			if obj.Key != nil {
				info.Key = *obj.Key
			}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			objects = append(objects, info)
		}
	}
	return objects, nil
}

func (s *S3Storage) ListVersions(ctx context.Context, bucket, prefix string) ([]ObjectVersion, error) {
	var versions []ObjectVersion

	input := &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	for {
		page, err := s.client.ListObjectVersions(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list versions s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, v := range page.Versions {
			versions = append(versions, objectVersion(v.Key, v.VersionId, v.LastModified, v.IsLatest, false))
		}
		for _, m := range page.DeleteMarkers {
			versions = append(versions, objectVersion(m.Key, m.VersionId, m.LastModified, m.IsLatest, true))
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		input.KeyMarker = page.NextKeyMarker
		input.VersionIdMarker = page.NextVersionIdMarker
	}
	return versions, nil
}

func (s *S3Storage) VersioningEnabled(ctx context.Context, bucket string) (bool, error) {
	out, err := s.client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return false, fmt.Errorf("get bucket versioning %s: %w", bucket, err)
	}
	return out.Status == s3types.BucketVersioningStatusEnabled, nil
}

func objectVersion(key, versionID *string, lastModified *time.Time, isLatest *bool, deleteMarker bool) ObjectVersion {
	v := ObjectVersion{DeleteMarker: deleteMarker}
	if key != nil {
		v.Key = *key
	}
	if versionID != nil {
		v.VersionID = *versionID
	}
	if lastModified != nil {
		v.LastModified = *lastModified
	}
	if isLatest != nil {
		v.IsLatest = *isLatest
	}
	return v
}

// ErrObjectNotFound marks a missing object; callers treat it as success
// during delete reconciliation.
var ErrObjectNotFound = errors.New("object not found")
