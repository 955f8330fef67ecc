// Package helius manages the Helius enhanced-transaction webhook that feeds
// transfers to the gateway.
package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Webhook is the Helius webhook resource.
type Webhook struct {
	WebhookID        string   `json:"webhookID,omitempty"`
	WebhookURL       string   `json:"webhookURL"`
	TransactionTypes []string `json:"transactionTypes"`
	AccountAddresses []string `json:"accountAddresses"`
	WebhookType      string   `json:"webhookType"`
	AuthHeader       string   `json:"authHeader,omitempty"`
}

// Client implements ports.AddressWatcher against the Helius REST API.
type Client struct {
	baseURL   string
	apiKey    string
	webhookID string
	http      HTTPClient
	log       zerolog.Logger

	// mu serializes read-modify-write cycles on the webhook address list.
	mu sync.Mutex
}

// NewClient creates a Helius API client bound to one webhook.
func NewClient(baseURL, apiKey, webhookID string, httpClient HTTPClient, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		webhookID: webhookID,
		http:      httpClient,
		log:       log,
	}
}

// Watch adds address to the webhook's account list. Already watched
// addresses are left alone.
func (c *Client) Watch(ctx context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hook, err := c.get(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(hook.AccountAddresses, address) {
		return nil
	}

	hook.AccountAddresses = append(hook.AccountAddresses, address)
	if err := c.do(ctx, http.MethodPut, c.endpoint("/v0/webhooks/"+url.PathEscape(c.webhookID)), hook, nil); err != nil {
		return fmt.Errorf("helius: update webhook: %w", err)
	}

	c.log.Debug().Str("address", address).Int("watched", len(hook.AccountAddresses)).Msg("address added to helius webhook")
	return nil
}

// Register creates a new enhanced webhook delivering to webhookURL. If
// authHeader is set Helius echoes it in the Authorization header of every
// delivery.
func (c *Client) Register(ctx context.Context, webhookURL, authHeader string, addresses []string) (*Webhook, error) {
	if addresses == nil {
		addresses = []string{}
	}
	req := Webhook{
		WebhookURL:       webhookURL,
		TransactionTypes: []string{"Any"},
		AccountAddresses: addresses,
		WebhookType:      "enhanced",
		AuthHeader:       authHeader,
	}

	var out Webhook
	if err := c.do(ctx, http.MethodPost, c.endpoint("/v0/webhooks"), req, &out); err != nil {
		return nil, fmt.Errorf("helius: register webhook: %w", err)
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context) (*Webhook, error) {
	if c.webhookID == "" {
		return nil, fmt.Errorf("helius: webhook id is not configured")
	}
	var hook Webhook
	if err := c.do(ctx, http.MethodGet, c.endpoint("/v0/webhooks/"+url.PathEscape(c.webhookID)), nil, &hook); err != nil {
		return nil, fmt.Errorf("helius: get webhook: %w", err)
	}
	return &hook, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path + "?api-key=" + url.QueryEscape(c.apiKey)
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
