// Package proxy provides a client for the search proxy turn endpoint.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"agri-search-go/internal/config"
	"agri-search-go/internal/model"
	"agri-search-go/pkg/errs"

	"github.com/tidwall/gjson"
)

// UserAgent is sent on every outbound request of the client runtime.
const UserAgent = "agri-client/1.0"

const maxResponseBytes = 8 << 20

// Client sends one turn and returns the decoded 2xx body.
type Client interface {
	Send(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error)
}

type httpClient struct {
	url    string
	client *http.Client
}

// NewClient creates a proxy client. A nil hc uses a plain http.Client; the
// request context is the only deadline.
func NewClient(cfg config.ProxyConfig, hc *http.Client) Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &httpClient{url: cfg.SearchURL(), client: hc}
}

// Send POSTs req as JSON. Errors are *errs.Error: Network for transport
// failures, Server for non-2xx JSON replies, Protocol for bodies that are
// not JSON or not an object.
func (c *httpClient) Send(ctx context.Context, turn model.TurnRequest) (*model.TurnResponse, error) {
	payload, err := json.Marshal(turn)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "could not encode turn", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errs.New(errs.KindInternal, "could not build proxy request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.Network(fmt.Errorf("call proxy: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errs.Network(fmt.Errorf("read proxy response: %w", err))
	}

	if !gjson.ValidBytes(body) {
		e := errs.Protocol(errs.NonJSONMessage, nil)
		e.Status = resp.StatusCode
		return nil, e
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.Server(resp.StatusCode, body)
	}
	if !gjson.ParseBytes(body).IsObject() {
		return nil, errs.Protocol("unexpected response shape", nil)
	}

	var out model.TurnResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Protocol("unexpected response shape", err)
	}
	return &out, nil
}
