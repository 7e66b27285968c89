package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for saving, retrieving, and deleting uploaded
// report files. Implementations must make Delete idempotent: deleting a
// missing path reports false, never an error.
type Store interface {
	// Save stores data under the uploads area, deriving a collision-free name
	// from filenameHint, and returns the relative path used.
	Save(data io.Reader, filenameHint string) (string, error)
	// Get retrieves a reader for a stored file
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	// Delete removes a stored file, reporting whether it existed
	Delete(relativePath string) (bool, error)
	// URL returns a download URL for a stored file valid for ttl
	URL(relativePath string, ttl time.Duration) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath   string // absolute path to STORAGE_PATH
	uploadsDir string // full absolute path of the uploads subdirectory
	baseURL    string // public base URL prefixed to generated links
	signingKey []byte // HMAC key binding generated links to their expiry
}

// NewLocalStorage creates a new local filesystem store rooted at basePath.
// signingKey authenticates generated download links; the file server must
// verify with the same key.
func NewLocalStorage(basePath, uploadsSubDir, baseURL, signingKey string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	uploadsDir := filepath.Join(absBasePath, uploadsSubDir)
	if !strings.HasPrefix(filepath.Clean(uploadsDir), absBasePath) {
		return nil, fmt.Errorf("invalid uploads subdirectory '%s': resolves outside base path", uploadsSubDir)
	}
	if err := os.MkdirAll(uploadsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory '%s': %w", uploadsDir, err)
	}

	log.Printf("storage: initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:   absBasePath,
		uploadsDir: uploadsDir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: []byte(signingKey),
	}, nil
}

// Save writes data to the uploads directory. The stored name is a UUID with
// the hint's extension so concurrent uploads of identically named reports
// never collide; the original name lives in the database record.
func (ls *LocalStorage) Save(data io.Reader, filenameHint string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate storage name: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(filenameHint))
	finalFilename := id.String() + ext

	fullSavePath := filepath.Join(ls.uploadsDir, finalFilename)

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to finalize file '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}

	log.Printf("storage: saved %s as %s", filenameHint, fullSavePath)
	return filepath.ToSlash(relativePath), nil
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.fullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("file not found at '%s': %w", relativePath, err)
		}
		return nil, nil, fmt.Errorf("failed to open file '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat file '%s': %w", relativePath, err)
	}

	return file, info, nil
}

// Delete removes a stored file. A missing path is not an error.
func (ls *LocalStorage) Delete(relativePath string) (bool, error) {
	if relativePath == "" {
		return false, nil
	}
	fullPath, err := ls.fullPath(relativePath)
	if err != nil {
		return false, err
	}

	err = os.Remove(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete file '%s': %w", relativePath, err)
	}
	log.Printf("storage: deleted %s", fullPath)
	return true, nil
}

// URL generates a time-limited download link. The expiry travels as a query
// parameter and is HMAC-signed together with the path, so a client cannot
// extend it; the file server verifies the signature and rejects expired
// links.
func (ls *LocalStorage) URL(relativePath string, ttl time.Duration) (string, error) {
	if _, err := ls.fullPath(relativePath); err != nil {
		return "", err
	}
	rel := filepath.ToSlash(relativePath)
	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s/files/%s?expires=%d&sig=%s",
		ls.baseURL, url.PathEscape(rel), expires, Sign(ls.signingKey, rel, expires)), nil
}

// Sign computes the hex HMAC-SHA256 tag binding a stored path to its link
// expiry.
func Sign(key []byte, relativePath string, expires int64) string {
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s\n%d", relativePath, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// fullPath calculates the absolute path and performs the path-escape check
func (ls *LocalStorage) fullPath(relativePath string) (string, error) {
	cleanRelativePath := filepath.Clean(relativePath)
	fullPath := filepath.Join(ls.basePath, cleanRelativePath)

	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}
	if !strings.HasPrefix(absFullPath, ls.basePath) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}
	return absFullPath, nil
}
