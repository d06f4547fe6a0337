package assets

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/docuvault/docscan/config"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/pkg/logger"
)

// S3Source treats an S3 bucket as the media library. Object keys become
// asset URIs prefixed with "s3://".
type S3Source struct {
	client     *s3.Client
	bucketName string
	logger     logger.Logger
}

const s3URIPrefix = "s3://"

func NewS3Source(ctx context.Context, log logger.Logger) (*S3Source, error) {
	s3Config := cfg.GetS3Config()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s3Config.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3Config.AccessKey,
			s3Config.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s3Config.BucketName),
	}); err != nil {
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}

	return &S3Source{
		client:     client,
		bucketName: s3Config.BucketName,
		logger:     log,
	}, nil
}

func (s *S3Source) Local() bool {
	return false
}

func (s *S3Source) ListAssets(ctx context.Context, query Query) ([]models.Asset, error) {
	var found []models.Asset

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.logger.Error("Failed to list objects",
				logger.String("bucket", s.bucketName),
				logger.Error(err),
			)
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			ext := strings.ToLower(path.Ext(key))
			if !imageExtensions[ext] {
				continue
			}

			asset := models.Asset{
				URI:      s3URIPrefix + key,
				Filename: path.Base(key),
				FileSize: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				asset.CreatedAt = *obj.LastModified
			}
			found = append(found, asset)
		}
	}

	return found, nil
}

func (s *S3Source) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	key := strings.TrimPrefix(uri, s3URIPrefix)
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return result.Body, nil
}
