package assets

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/docuvault/docscan/config"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/pkg/logger"
)

// MinioSource treats a MinIO bucket as the media library. Object keys become
// asset URIs prefixed with "minio://".
type MinioSource struct {
	client     *minio.Client
	bucketName string
	logger     logger.Logger
}

const minioURIPrefix = "minio://"

func NewMinioSource(log logger.Logger) (*MinioSource, error) {
	minioConfig := cfg.GetMinioConfig()
	client, err := minio.New(minioConfig.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
		Secure: minioConfig.UseSSL,
		Region: minioConfig.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinioSource{
		client:     client,
		bucketName: minioConfig.BucketName,
		logger:     log,
	}, nil
}

func (s *MinioSource) Local() bool {
	return false
}

func (s *MinioSource) ListAssets(ctx context.Context, query Query) ([]models.Asset, error) {
	var found []models.Asset

	objectCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Recursive: true})
	for obj := range objectCh {
		if obj.Err != nil {
			s.logger.Error("Error listing objects",
				logger.String("bucket", s.bucketName),
				logger.Error(obj.Err),
			)
			return nil, fmt.Errorf("failed to list bucket %s: %w", s.bucketName, obj.Err)
		}

		ext := strings.ToLower(path.Ext(obj.Key))
		if !imageExtensions[ext] {
			continue
		}

		found = append(found, models.Asset{
			URI:       minioURIPrefix + obj.Key,
			Filename:  path.Base(obj.Key),
			CreatedAt: obj.LastModified,
			FileSize:  obj.Size,
			MimeType:  obj.ContentType,
		})
	}

	return found, nil
}

func (s *MinioSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	key := strings.TrimPrefix(uri, minioURIPrefix)
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj, nil
}
