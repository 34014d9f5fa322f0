// Package catalog fetches the document title listing.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"agri-search-go/internal/config"
	"agri-search-go/internal/model"
	"agri-search-go/pkg/errs"
	"agri-search-go/pkg/proxy"

	"github.com/tidwall/gjson"
)

const maxListingBytes = 4 << 20

// Client returns the raw listing. Entries keep an empty Title when the
// endpoint sent none; relative URLs are resolved against the listing URL.
type Client interface {
	Titles(ctx context.Context) ([]model.DocumentRef, error)
}

type httpClient struct {
	titlesURL string
	client    *http.Client
}

// NewClient creates a catalog client. A nil hc uses a plain http.Client.
func NewClient(cfg config.CatalogConfig, hc *http.Client) Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &httpClient{titlesURL: cfg.TitlesURL, client: hc}
}

func (c *httpClient) Titles(ctx context.Context) ([]model.DocumentRef, error) {
	base, err := url.Parse(c.titlesURL)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "invalid titles url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.titlesURL, nil)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "could not build titles request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", proxy.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.Network(fmt.Errorf("fetch titles: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, errs.Network(fmt.Errorf("read titles: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.Server(resp.StatusCode, body)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return []model.DocumentRef{}, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, errs.Protocol(errs.NonJSONMessage, nil)
	}
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, errs.Protocol("titles listing is not an array", nil)
	}

	var docs []model.DocumentRef
	res.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		raw := strings.TrimSpace(item.Get("url").String())
		if raw == "" {
			return true
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return true
		}
		docs = append(docs, model.DocumentRef{
			URL:   base.ResolveReference(ref).String(),
			Title: strings.TrimSpace(item.Get("title").String()),
		})
		return true
	})
	if docs == nil {
		docs = []model.DocumentRef{}
	}
	return docs, nil
}
