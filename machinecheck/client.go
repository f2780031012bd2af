// Package machinecheck queries the external Bitcoin Machine registry for
// whether a BTC address owns a machine. Ownership gating is optional and
// the registry is outside this service's trust boundary, so the client
// treats it as a plain HTTP dependency with a short timeout.
package machinecheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hivemachines/account-provisioner/interfaces"
)

const defaultTimeout = 10 * time.Second

// Client implements interfaces.MachineChecker against the registry's
// check-ownership endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a registry client for the given endpoint URL.
func NewClient(endpoint string, log *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ownershipRequest struct {
	Address string `json:"address"`
}

type ownershipResponse struct {
	OwnsBTCMachine bool `json:"ownsBTCMachine"`
}

// OwnsMachine implements interfaces.MachineChecker.
func (c *Client) OwnsMachine(ctx context.Context, address interfaces.BTCAddress) (bool, error) {
	body, err := json.Marshal(ownershipRequest{Address: address.String()})
	if err != nil {
		return false, fmt.Errorf("failed to marshal ownership request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create ownership request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("machine registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("machine registry returned status %d: %s", resp.StatusCode, payload)
	}

	var parsed ownershipResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("failed to decode ownership response: %w", err)
	}

	c.log.Debug("Checked machine ownership",
		slog.String("address", address.String()),
		slog.Bool("ownsBTCMachine", parsed.OwnsBTCMachine))
	return parsed.OwnsBTCMachine, nil
}
