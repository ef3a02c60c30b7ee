package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPService calls the external AI service's /analyze and /transcribe
// endpoints. Any failure is reported as ErrUnavailable.
type HTTPService struct {
	baseURL string
	client  *http.Client
}

func NewHTTPService(baseURL string, timeout time.Duration) *HTTPService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPService) Analyze(ctx context.Context, description string) (Analysis, error) {
	var out Analysis
	if err := s.post(ctx, "/analyze", map[string]string{"description": description}, &out); err != nil {
		return Analysis{}, err
	}
	return out, nil
}

func (s *HTTPService) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := s.post(ctx, "/transcribe", map[string]any{"audio": audio, "language": language}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (s *HTTPService) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode ai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
