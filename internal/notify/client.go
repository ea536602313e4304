// Package notify provides the client for the external notification service.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/RubenMansilla/Nebripop-sub000/internal/model"
)

// Client encapsulates HTTP delivery of user notifications. Delivery is
// at-least-once; semantic deduplication is the caller's job via the
// per-phase threshold keys.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// message is the wire form of one notification.
type message struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	ProductID *int64 `json:"product_id,omitempty"`
}

// NewClient creates an HTTP client for the notification service at the given
// address.
func NewClient(baseURL string) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 2
	httpClient.RetryWaitMin = 200 * time.Millisecond
	httpClient.RetryWaitMax = time.Second
	httpClient.HTTPClient.Timeout = 5 * time.Second
	httpClient.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Notify delivers one message to a user. Each dispatch carries a fresh UUID
// so the receiving side can deduplicate transport-level retries.
func (c *Client) Notify(ctx context.Context, userID int64, text string, category model.NotificationCategory, productID *int64) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("notification client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   text,
		Category:  string(category),
		ProductID: productID,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base+"/api/notifications", body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
