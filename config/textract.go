package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var (
	textractOnce   sync.Once
	textractConfig *TextractConfig
)

// TextractConfig holds AWS credentials for the Textract engine. Sourced from
// environment variables, optionally via a .env file.
type TextractConfig struct {
	Enabled   bool
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func GetTextractConfig() *TextractConfig {
	textractOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found, falling back to environment variables")
		}

		textractConfig = &TextractConfig{
			Enabled:   os.Getenv("AWS_ACCESS_KEY") != "",
			Region:    os.Getenv("AWS_REGION"),
			Endpoint:  os.Getenv("AWS_ENDPOINT"),
			AccessKey: os.Getenv("AWS_ACCESS_KEY"),
			SecretKey: os.Getenv("AWS_SECRET_KEY"),
		}
	})
	return textractConfig
}
