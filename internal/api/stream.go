// Streaming message transport. The backend answers a send with
// ?stream=true using text/event-stream framing: lines prefixed "data: ",
// blank line separators, terminated by a "data: [DONE]" sentinel.
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"intersectx/pkg/chattypes"
)

// doneSentinel terminates an event stream.
const doneSentinel = "[DONE]"

// streamChunkEnvelope is a single SSE data payload. Content is a pointer
// because the backend emits explicit nulls for keepalive chunks.
type streamChunkEnvelope struct {
	Content   *string  `json:"content"`
	IframeURL []string `json:"iframe_url,omitempty"`
}

// StreamMessage posts a message to a thread and returns a channel of
// response chunks in delivery order. The channel is closed when the stream
// ends, errors, or ctx is cancelled; cancellation closes the channel
// without an error chunk. The terminal sentinel arrives as a chunk with
// Done set.
func (c *Client) StreamMessage(ctx context.Context, threadID string, msg chattypes.OutgoingMessage) (<-chan chattypes.StreamChunk, error) {
	if threadID == "" {
		return nil, fmt.Errorf("stream message: thread id is required")
	}

	body, err := json.Marshal(newSendMessageRequest(msg))
	if err != nil {
		return nil, fmt.Errorf("stream message: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, messagesPath(threadID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("stream", "true")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream message to %s: %w", threadID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("stream message to %s: api error: %s: %s",
			threadID, resp.Status, strings.TrimSpace(string(snippet)))
	}

	ch := make(chan chattypes.StreamChunk, 8)
	go c.readStream(ctx, resp.Body, ch)

	c.log.Debug("Stream opened", "thread", threadID)
	return ch, nil
}

// readStream parses SSE lines from body and forwards them as chunks.
// Chunks are emitted strictly in delivery order; malformed payloads are
// skipped, never reordered.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, ch chan<- chattypes.StreamChunk) {
	defer close(ch)
	defer func() {
		_ = body.Close()
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == doneSentinel {
			select {
			case ch <- chattypes.StreamChunk{Done: true}:
			case <-ctx.Done():
			}
			return
		}

		var env streamChunkEnvelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			c.log.Debug("Skipping malformed stream chunk", "error", err)
			continue
		}
		if env.Content == nil && len(env.IframeURL) == 0 {
			continue
		}

		chunk := chattypes.StreamChunk{IframeURLs: env.IframeURL}
		if env.Content != nil {
			chunk.Content = *env.Content
		}

		select {
		case ch <- chunk:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		// Cancellation is graceful termination, not a stream fault.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		ch <- chattypes.StreamChunk{Error: fmt.Errorf("stream read: %w", err)}
	}
}
