// Package runtime provides the HTTP and WebSocket client for deployed agent
// containers. Every running deployment exposes the same small surface on its
// assigned port: /health, /chat, /ws, /working-memory, and /inject-context.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ChatRequest is one message sent to a container's /chat endpoint.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// ChatResponse is the container's reply to a chat request.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// MemoryEntry is one working memory item held by a container.
type MemoryEntry struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// Client talks to agent containers on the local container host.
type Client struct {
	host       string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates a container client. The host is where container ports are
// published, e.g. 127.0.0.1 or host.docker.internal.
func NewClient(host string) *Client {
	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute, // agent turns can be slow
		},
		dialer: websocket.DefaultDialer,
	}
}

func (c *Client) url(port int, path string) string {
	return fmt.Sprintf("http://%s:%d%s", c.host, port, path)
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach container: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("container returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode container response: %w", err)
	}
	return nil
}

// Health checks a container's /health endpoint.
func (c *Client) Health(ctx context.Context, port int) error {
	return c.doJSON(ctx, http.MethodGet, c.url(port, "/health"), nil, nil)
}

// Chat sends one message to the container and waits for the full reply.
func (c *Client) Chat(ctx context.Context, port int, req *ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, c.url(port, "/chat"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DialChat opens the container's streaming chat WebSocket.
func (c *Client) DialChat(ctx context.Context, port int) (*websocket.Conn, error) {
	url := fmt.Sprintf("ws://%s:%d/ws", c.host, port)
	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial container (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial container: %w", err)
	}
	return conn, nil
}

// WorkingMemory fetches the container's current working memory entries.
func (c *Client) WorkingMemory(ctx context.Context, port int) ([]MemoryEntry, error) {
	var resp struct {
		Entries []MemoryEntry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.url(port, "/working-memory"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// InjectContext adds an entry to the container's working memory and returns
// the updated entries.
func (c *Client) InjectContext(ctx context.Context, port int, name, content string) ([]MemoryEntry, error) {
	payload := map[string]string{"content": content}
	if name != "" {
		payload["name"] = name
	}
	var resp struct {
		Entries []MemoryEntry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.url(port, "/inject-context"), payload, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// ClearWorkingMemory removes all working memory entries from the container.
func (c *Client) ClearWorkingMemory(ctx context.Context, port int) error {
	return c.doJSON(ctx, http.MethodDelete, c.url(port, "/working-memory"), nil, nil)
}
