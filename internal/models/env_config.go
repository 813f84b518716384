package models

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type EnvConfig struct {
	DatabaseURL    string
	Port           string
	Debug          bool
	JWTPublicKey   []byte
	AppURL         string
	UploadDir      string
	UploadMaxBytes int64
	CORSOrigins    []string
}

func ReadEnvConfig() EnvConfig {
	// Missing .env is fine; real env vars win in production.
	_ = godotenv.Load()

	debug := os.Getenv("GUILDHALL_DEBUG") == "true"
	port := os.Getenv("GUILDHALL_PORT")
	if port == "" {
		port = "8080"
	}
	appURL := os.Getenv("GUILDHALL_APP_URL")
	if appURL == "" {
		appURL = fmt.Sprintf("http://localhost:%s", port)
	}
	uploadDir := os.Getenv("GUILDHALL_UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./data/images"
	}
	maxBytes, err := strconv.ParseInt(os.Getenv("GUILDHALL_UPLOAD_MAX_BYTES"), 10, 64)
	if err != nil || maxBytes <= 0 {
		fmt.Println("Using default value for GUILDHALL_UPLOAD_MAX_BYTES")
		maxBytes = 10 << 20 // 10MB, single file per request
	}
	origins := strings.Split(os.Getenv("GUILDHALL_CORS_ORIGINS"), ",")
	if len(origins) == 1 && origins[0] == "" {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}

	return EnvConfig{
		DatabaseURL:    os.Getenv("GUILDHALL_DATABASE_URL"),
		Port:           port,
		Debug:          debug,
		JWTPublicKey:   []byte(os.Getenv("GUILDHALL_JWT_PUBLIC_KEY")),
		AppURL:         appURL,
		UploadDir:      uploadDir,
		UploadMaxBytes: maxBytes,
		CORSOrigins:    origins,
	}
}
