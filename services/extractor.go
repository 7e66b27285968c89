package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/genomatch/dnalabbackend/dna"
)

// Extractor is the external recognition collaborator. It receives a (possibly
// preprocessed) report document and returns a best-effort structured guess
// with optional per-value confidence. Its internals are out of scope here;
// retry policy, if any, belongs to the caller.
type Extractor interface {
	Extract(ctx context.Context, document []byte, filename string) (*dna.ExtractionResult, error)
}

// HTTPExtractor forwards documents to an external extraction service that
// answers with an extraction result payload.
type HTTPExtractor struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPExtractor(endpoint string) *HTTPExtractor {
	return &HTTPExtractor{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

func (he *HTTPExtractor) Extract(ctx context.Context, document []byte, filename string) (*dna.ExtractionResult, error) {
	if he.Endpoint == "" {
		return nil, fmt.Errorf("extraction service is not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, he.Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := he.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, payload)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}

	result, err := dna.ParseExtractionResult(payload)
	if err != nil {
		return nil, fmt.Errorf("extraction service returned an invalid payload: %w", err)
	}
	return result, nil
}
