// Package download retrieves document bytes for direct saves.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"agri-search-go/pkg/errs"
	"agri-search-go/pkg/proxy"
)

const maxBufferedBytes = 128 << 20

// ErrHostNotAllowed is returned by Stream for hosts outside the allow list.
var ErrHostNotAllowed = errors.New("host not allowed for streaming")

// Fetcher has two paths. Stream is the strict one: allowed hosts only and no
// redirects off the original host. Fetch follows any redirect and buffers the
// whole body.
type Fetcher struct {
	allowed map[string]struct{}
	strict  *http.Client
	relaxed *http.Client
}

// NewFetcher builds a Fetcher. An empty allowedHosts disables Stream.
func NewFetcher(allowedHosts []string) *Fetcher {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = struct{}{}
		}
	}
	strict := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			if !strings.EqualFold(req.URL.Host, via[0].URL.Host) {
				return fmt.Errorf("redirect to %s leaves %s", req.URL.Host, via[0].URL.Host)
			}
			return nil
		},
	}
	return &Fetcher{
		allowed: allowed,
		strict:  strict,
		relaxed: &http.Client{},
	}
}

// Stream opens the document for streaming. The caller closes the body.
// size is -1 when the server sent no length.
func (f *Fetcher) Stream(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, errs.Validation("invalid document url")
	}
	if _, ok := f.allowed[strings.ToLower(u.Hostname())]; !ok {
		return nil, 0, ErrHostNotAllowed
	}
	resp, err := f.get(ctx, f.strict, rawURL)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// Fetch downloads the whole document into memory.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.get(ctx, f.relaxed, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBufferedBytes+1))
	if err != nil {
		return nil, errs.Network(fmt.Errorf("read document: %w", err))
	}
	if len(data) > maxBufferedBytes {
		return nil, errs.New(errs.KindNetwork, "document too large", nil)
	}
	return data, nil
}

func (f *Fetcher) get(ctx context.Context, c *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Validation("invalid document url")
	}
	req.Header.Set("User-Agent", proxy.UserAgent)

	resp, err := c.Do(req)
	if err != nil {
		return nil, errs.Network(fmt.Errorf("download document: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, errs.Server(resp.StatusCode, body)
	}
	return resp, nil
}
