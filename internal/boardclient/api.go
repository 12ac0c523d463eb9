package boardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient talks to the board REST endpoints and implements SnapshotClient.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient targets baseURL (e.g. "http://localhost:8000") with a bearer
// access token.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Load fetches the stored snapshot for one board.
func (a *APIClient) Load(ctx context.Context, boardID string) ([]byte, error) {
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/boards/"+boardID, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Save overwrites the stored snapshot, last write wins.
func (a *APIClient) Save(ctx context.Context, boardID string, data []byte) error {
	body := map[string]json.RawMessage{"data": data}
	return a.do(ctx, http.MethodPut, "/api/boards/"+boardID, body, nil)
}

// Messages fetches the persisted chat log, oldest first.
func (a *APIClient) Messages(ctx context.Context, boardID string) ([]ChatMessage, error) {
	var out []ChatMessage
	if err := a.do(ctx, http.MethodGet, "/api/boards/"+boardID+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatMessage is one persisted chat entry as the API returns it.
type ChatMessage struct {
	ID         int64  `json:"id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	CreatedAt  string `json:"created_at"`
}

func (a *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("boardclient: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
