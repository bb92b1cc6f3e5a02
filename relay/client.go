package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// HeaderIdentity carries the caller's hex identity key on every request.
const HeaderIdentity = "X-Identity-Key"

// Wire shapes of the mailboxd API.
type (
	sendRequest struct {
		Recipient   string `json:"recipient"`
		MessageBox  string `json:"messageBox"`
		ReferenceID string `json:"referenceId"`
		Body        []byte `json:"body"`
	}
	sendResponse struct {
		MessageID string `json:"messageId"`
	}
	listResponse struct {
		Messages []*Notification `json:"messages"`
	}
	ackRequest struct {
		MessageIDs []string `json:"messageIds"`
	}
	ackResponse struct {
		Acknowledged int `json:"acknowledged"`
	}
	errorResponse struct {
		Error string `json:"error"`
	}
)

// Client is a Relay backed by a mailboxd server.
type Client struct {
	baseURL  string
	identity string
	client   *http.Client
}

// Compile-time interface check.
var _ Relay = (*Client)(nil)

// NewClient returns a client for the server at baseURL acting as identity.
func NewClient(baseURL string, identity *ec.PublicKey) (*Client, error) {
	if identity == nil {
		return nil, fmt.Errorf("%w: nil identity", ErrInvalidIdentity)
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: IdentityHex(identity),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Publish posts a notification to recipient.
func (c *Client) Publish(ctx context.Context, recipient *ec.PublicKey, box, referenceID string, payload []byte) (string, error) {
	if recipient == nil {
		return "", fmt.Errorf("%w: recipient", ErrInvalidIdentity)
	}
	var resp sendResponse
	err := c.do(ctx, http.MethodPost, "/v1/messages", sendRequest{
		Recipient:   IdentityHex(recipient),
		MessageBox:  box,
		ReferenceID: referenceID,
		Body:        payload,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// Poll lists the caller's box.
func (c *Client) Poll(ctx context.Context, box string) ([]*Notification, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/v1/messages?box="+url.QueryEscape(box), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Acknowledge removes ids from the caller's mailbox.
func (c *Client) Acknowledge(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var resp ackResponse
	return c.do(ctx, http.MethodPost, "/v1/messages/acknowledge", ackRequest{MessageIDs: ids}, &resp)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("relay: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("relay: create request: %w", err)
	}
	req.Header.Set(HeaderIdentity, c.identity)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		return fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	return nil
}
