package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process-level configuration. It follows the 12-factor app
// methodology by prioritizing environment variables.
type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	DBDisable     bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	UploadLimit   int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "jobtrail"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBDisable:     getEnvAsBool("DB_DISABLE", false),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		UploadLimit:   getEnvAsInt("UPLOAD_RATE_LIMIT", 30),
	}
}

// Blob holds the attachment-storage configuration. It is intentionally cheap
// to build so callers can re-read it from the environment on every request
// instead of caching a snapshot taken at startup.
type Blob struct {
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PublicBase string

	BlobToken      string
	BlobAPIBase    string
	BlobUploadURL  string
	BlobPublicBase string

	UploadsDir     string
	EnforceRemote  bool
	MaxUploadBytes int64
}

func LoadBlob() Blob {
	return Blob{
		S3AccessKey:  getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:  getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Region:     getEnv("S3_REGION", "auto"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),

		BlobToken:      getEnv("BLOB_READ_WRITE_TOKEN", ""),
		BlobAPIBase:    getEnv("BLOB_API_URL", "https://blob.vercel-storage.com"),
		BlobUploadURL:  getEnv("BLOB_UPLOAD_URL", ""),
		BlobPublicBase: getEnv("BLOB_PUBLIC_BASE", ""),

		UploadsDir:     getEnv("UPLOADS_DIR", "uploads"),
		EnforceRemote:  getEnvAsBool("ENFORCE_REMOTE_UPLOADS", false),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 100<<20)),
	}
}

// HasObjectStore reports whether S3-compatible credentials are present.
func (b Blob) HasObjectStore() bool {
	return b.S3AccessKey != "" && b.S3SecretKey != "" && b.S3Bucket != ""
}

// HasRemoteBlob reports whether the hosted blob service token is present.
func (b Blob) HasRemoteBlob() bool {
	return b.BlobToken != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
