package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"carddash/pkg/models"
)

// DefaultURL is the public collection endpoint.
const DefaultURL = "https://nebula-collection-api.vercel.app/cards"

const (
	defaultTimeout = 15 * time.Second
	excerptLen     = 200
)

// ErrStatus reports a non-2xx response.
var ErrStatus = errors.New("unexpected status")

// HTTPSource fetches the collection with a single GET.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns a source for url. A zero timeout uses the default.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) FetchAll(ctx context.Context) ([]models.Card, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, excerpt(body))
	}

	cards, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return cards, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > excerptLen {
		return s[:excerptLen] + "..."
	}
	return s
}
