package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var (
	s3Once   sync.Once
	s3Config *S3Config
)

// S3Config holds credentials for the S3-backed asset source.
type S3Config struct {
	BucketName string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
}

func GetS3Config() *S3Config {
	s3Once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found, falling back to environment variables")
		}

		s3Config = &S3Config{
			BucketName: os.Getenv("S3_BUCKET_NAME"),
			Region:     os.Getenv("AWS_REGION"),
			Endpoint:   os.Getenv("AWS_ENDPOINT"),
			AccessKey:  os.Getenv("AWS_ACCESS_KEY"),
			SecretKey:  os.Getenv("AWS_SECRET_KEY"),
		}
	})
	return s3Config
}
