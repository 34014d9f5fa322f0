// Package converter provides a client for the document conversion service,
// which turns an amendments document into a spreadsheet report.
package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"agri-search-go/internal/config"
	"agri-search-go/pkg/errs"
	"agri-search-go/pkg/proxy"
)

const maxReportBytes = 64 << 20

// Report is a converted document.
type Report struct {
	Data        []byte
	ContentType string
	// Filename is the name suggested by Content-Disposition, if any.
	Filename string
}

// Client converts the document at a URL.
type Client interface {
	Convert(ctx context.Context, documentURL string) (*Report, error)
}

type httpClient struct {
	processURL string
	client     *http.Client
}

// NewClient creates a converter client. A nil hc uses a plain http.Client.
func NewClient(cfg config.ConverterConfig, hc *http.Client) Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &httpClient{processURL: cfg.ProcessURL, client: hc}
}

// Convert POSTs {"url": documentURL}. A non-2xx status, an empty payload or
// one over maxReportBytes is a conversion error; nothing is returned to save
// in that case.
func (c *httpClient) Convert(ctx context.Context, documentURL string) (*Report, error) {
	payload, err := json.Marshal(map[string]string{"url": documentURL})
	if err != nil {
		return nil, errs.New(errs.KindInternal, "could not encode conversion request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errs.New(errs.KindInternal, "could not build conversion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", proxy.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.Network(fmt.Errorf("call converter: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes+1))
	if err != nil {
		return nil, errs.Network(fmt.Errorf("read conversion result: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.Conversion(resp.StatusCode, body)
	}
	if len(body) > maxReportBytes {
		e := errs.Conversion(resp.StatusCode, nil)
		e.Message = errs.ConversionMessage + ": report too large"
		return nil, e
	}
	if len(body) == 0 {
		e := errs.Conversion(resp.StatusCode, nil)
		e.Message = errs.ConversionMessage + ": empty result"
		return nil, e
	}

	return &Report{
		Data:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
	}, nil
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
