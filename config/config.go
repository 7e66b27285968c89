package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultUploadsSubDir = "uploads"
)

const (
	defaultMatchThresholdPercent = 80.0
	defaultMinComparedLoci       = 4
	defaultMinValidLoci          = 10
	defaultMinConfidence         = 0.8
	defaultTopMatches            = 3
	defaultURLTTLSeconds         = 3600
	defaultScanMaxSize           = 2200
)

type Config struct {
	// database path
	DatabasePath string

	// storage configuration
	StoragePath string // root for stored report files
	UploadsPath string // full-calculated path for uploaded reports

	// public base URL used when generating download links
	BackendURL string

	// endpoint of the report extraction service; empty disables uploads
	ExtractorURL string

	// HMAC key for signed download links
	URLSigningKey string

	// duplicate detection and validation thresholds. Empirically chosen
	// values; override only with domain sign-off.
	MatchThresholdPercent float64 // identity declared at >= this exact-match percentage
	MinComparedLoci       int     // a comparison is decisive only at >= this overlap
	MinValidLoci          int     // minimum valid loci per person record
	MinConfidence         float64 // per-allele and overall-quality floor

	// matching service settings
	TopMatches int

	// download URL lifetime in seconds
	URLTTLSeconds int

	// scan preprocessing bound (longest side, px)
	ScanMaxSize int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// loadSigningKey reads URL_SIGNING_KEY, generating an ephemeral key when it
// is unset. Ephemeral keys invalidate outstanding download links on restart.
func loadSigningKey() (string, error) {
	if key := os.Getenv("URL_SIGNING_KEY"); key != "" {
		return key, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate URL signing key: %w", err)
	}
	log.Printf("Warning: URL_SIGNING_KEY is not set; using an ephemeral key, download links will not survive restarts")
	return hex.EncodeToString(buf), nil
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "dnaregistry.db")

	storage := getEnvOrDefault("STORAGE_PATH", filepath.Join(".", "file_storage"))
	absStorage, err := filepath.Abs(storage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for storage '%s': %w", storage, err)
	}

	uploadsSubDir := getEnvOrDefault("UPLOADS_SUBDIR", DefaultUploadsSubDir)
	absUploadsPath := filepath.Join(absStorage, uploadsSubDir)

	signingKey, err := loadSigningKey()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DatabasePath:          dbPath,
		StoragePath:           absStorage,
		UploadsPath:           absUploadsPath,
		BackendURL:            getEnvOrDefault("BACKEND_URL", "http://localhost:8080"),
		ExtractorURL:          os.Getenv("EXTRACTOR_URL"),
		URLSigningKey:         signingKey,
		MatchThresholdPercent: getEnvFloatOrDefault("MATCH_THRESHOLD_PERCENT", defaultMatchThresholdPercent),
		MinComparedLoci:       getEnvIntOrDefault("MIN_COMPARED_LOCI", defaultMinComparedLoci),
		MinValidLoci:          getEnvIntOrDefault("MIN_VALID_LOCI", defaultMinValidLoci),
		MinConfidence:         getEnvFloatOrDefault("MIN_CONFIDENCE", defaultMinConfidence),
		TopMatches:            getEnvIntOrDefault("TOP_MATCHES", defaultTopMatches),
		URLTTLSeconds:         getEnvIntOrDefault("URL_TTL_SECONDS", defaultURLTTLSeconds),
		ScanMaxSize:           getEnvIntOrDefault("SCAN_MAX_SIZE", defaultScanMaxSize),
	}

	return cfg, nil
}
