package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var (
	minioOnce   sync.Once
	minioConfig *MinioConfig
)

// MinioConfig holds credentials for the MinIO-backed asset source.
type MinioConfig struct {
	AccessKey  string
	SecretKey  string
	Endpoint   string
	UseSSL     bool
	Region     string
	BucketName string
}

func GetMinioConfig() *MinioConfig {
	minioOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found, falling back to environment variables")
		}

		minioConfig = &MinioConfig{
			AccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey:  os.Getenv("MINIO_SECRET_KEY"),
			Endpoint:   os.Getenv("MINIO_ENDPOINT"),
			UseSSL:     os.Getenv("MINIO_USE_SSL") == "true",
			Region:     os.Getenv("MINIO_REGION"),
			BucketName: os.Getenv("MINIO_BUCKET_NAME"),
		}
	})
	return minioConfig
}
