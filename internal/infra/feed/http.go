package feed

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/exception"
)

const maxFeedBytes = 1 << 20

// HTTPSource は条件付き GET でフィードを取得します。
// 304 Not Modified は「変化なし」として扱います
type HTTPSource struct {
	url    string
	client *http.Client

	mu           sync.Mutex
	etag         string
	lastModified string
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, since string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, since, errors.Wrapf(exception.ErrFeedUnavailable, "build request: %v", err)
	}

	s.mu.Lock()
	if since != "" {
		if s.etag != "" {
			req.Header.Set("If-None-Match", s.etag)
		}
		if s.lastModified != "" {
			req.Header.Set("If-Modified-Since", s.lastModified)
		}
	}
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, since, errors.Wrapf(exception.ErrFeedUnavailable, "get %s: %v", s.url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, since, nil
	case resp.StatusCode != http.StatusOK:
		return nil, since, errors.Wrapf(exception.ErrFeedUnavailable, "get %s: status %d", s.url, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, since, errors.Wrapf(exception.ErrFeedUnavailable, "read body: %v", err)
	}

	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")

	marker := etag
	if marker == "" {
		marker = lastModified
	}
	if marker == "" {
		// 条件付き GET 非対応のサーバーは中身のハッシュで変化を判定する
		marker = "sha256:" + digest(payload)
	}

	s.mu.Lock()
	s.etag = etag
	s.lastModified = lastModified
	s.mu.Unlock()

	if marker == since {
		return nil, since, nil
	}
	return payload, marker, nil
}
