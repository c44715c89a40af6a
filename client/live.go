package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"messaging-service/internal/models"
)

// LiveStream subscribes to the SSE live-update endpoint and feeds every
// received message into a handler, typically Conversation.Append.
type LiveStream struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	handler    func(models.Message)
}

// NewLiveStream builds a subscriber for the given user's live channel.
func NewLiveStream(baseURL, userID string, handler func(models.Message)) *LiveStream {
	return &LiveStream{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		// No overall timeout: the stream is long-lived by design.
		httpClient: &http.Client{},
		handler:    handler,
	}
}

// Listen connects and consumes the stream until the context is canceled or
// the server closes the connection. Heartbeat comments are skipped; each
// data frame is decoded as one Message.
func (s *LiveStream) Listen(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/messages/live/"+s.userID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("live stream: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			continue
		}
		s.handler(msg)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

// ListenWithRetry reconnects with a fixed backoff until the context ends.
// Missed pushes during a gap are recovered by the next history fetch.
func (s *LiveStream) ListenWithRetry(ctx context.Context, backoff time.Duration) {
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	for {
		_ = s.Listen(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}
