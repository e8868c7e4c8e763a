package tokensource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
)

// sanitize normalizes rows and drops any row missing chain or address, so
// nothing invalid reaches the pipeline.
func sanitize(rows []domain.TokenRef) []domain.TokenRef {
	out := make([]domain.TokenRef, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		r = r.Normalize()
		if !r.Valid() {
			dropped++
			continue
		}
		out = append(out, r)
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Int("kept", len(out)).Msg("token rows missing chain or address dropped")
	}
	return out
}

// HTTPSource loads the token list from a webhook endpoint returning a JSON
// array of token rows.
type HTTPSource struct {
	url string
	hc  *http.Client
}

func NewHTTP(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSource{url: url, hc: &http.Client{Timeout: timeout}}
}

func (s *HTTPSource) Load(ctx context.Context) ([]domain.TokenRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch token list: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token list http %d", resp.StatusCode)
	}

	var rows []domain.TokenRef
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}
	return sanitize(rows), nil
}

// FileSource loads the token list from a local JSON file.
type FileSource struct {
	path string
}

func NewFile(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(ctx context.Context) ([]domain.TokenRef, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read token list: %w", err)
	}
	var rows []domain.TokenRef
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}
	return sanitize(rows), nil
}

var (
	_ port.TokenSource = (*HTTPSource)(nil)
	_ port.TokenSource = (*FileSource)(nil)
)
