package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is the JSON body posted to the chat webhook
type ChatMessage struct {
	Target string `json:"target"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Link   string `json:"link,omitempty"`
}

// ChatSender posts notifications to an incoming-webhook URL; an empty URL disables it
type ChatSender struct {
	URL        string
	HttpClient *http.Client
}

func NewChatSender(url string) *ChatSender {
	return &ChatSender{
		URL: url,
		HttpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *ChatSender) Enabled() bool {
	return c != nil && c.URL != ""
}

func (c *ChatSender) Post(ctx context.Context, msg ChatMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "HRFlow-Notifier")
	req.Header.Set("X-HRFlow-Delivery", uuid.NewString())

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat webhook returned %d", resp.StatusCode)
	}
	return nil
}
