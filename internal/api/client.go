// Package api implements the client for the remote Intersectx thread API.
// It covers thread listing, creation, fetching, deletion, message sending
// (synchronous and streaming) and file uploads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"intersectx/internal/auth"
	"intersectx/internal/logger"
	"intersectx/pkg/chattypes"
)

// API endpoint paths, relative to the configured base URL.
const (
	threadsPath = "/chat/threads"
	uploadPath  = "/files/upload"
)

// Client talks to the remote thread API. It is safe for concurrent use.
type Client struct {
	baseURL string
	company string
	creds   auth.CredentialSource

	// httpClient bounds request/response calls with a timeout.
	// streamClient has no client-side timeout; streaming lifetimes are
	// governed by the caller's context instead.
	httpClient   *http.Client
	streamClient *http.Client

	log *log.Logger
}

// NewClient creates a thread API client. company names the upload path
// segment; creds may produce an empty token, in which case requests are
// sent anonymously.
func NewClient(baseURL, company string, timeout time.Duration, creds auth.CredentialSource) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		company:      company,
		creds:        creds,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		log:          logger.NewStyledLogger("ThreadAPI"),
	}
}

// ListThreads fetches all thread summaries for the current user.
func (c *Client) ListThreads(ctx context.Context) ([]chattypes.Thread, error) {
	req, err := c.newRequest(ctx, http.MethodGet, threadsPath, nil)
	if err != nil {
		return nil, err
	}

	var envelopes []threadEnvelope
	if err := c.doJSON(req, &envelopes); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	threads := make([]chattypes.Thread, 0, len(envelopes))
	for _, env := range envelopes {
		threads = append(threads, env.toThread())
	}

	c.log.Debug("Threads listed", "count", len(threads))
	return threads, nil
}

// CreateThread requests a new thread from the backend and returns its ID.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, threadsPath, strings.NewReader("{}"))
	if err != nil {
		return "", err
	}

	var created createThreadResponse
	if err := c.doJSON(req, &created); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if created.ThreadID == "" {
		return "", fmt.Errorf("create thread: no thread id returned")
	}

	c.log.Debug("Thread created", "thread", created.ThreadID)
	return created.ThreadID, nil
}

// GetThread fetches a thread with its full message history. A backend 404
// is reported as chattypes.ErrThreadNotFound.
func (c *Client) GetThread(ctx context.Context, threadID string) (*chattypes.ThreadDetail, error) {
	if threadID == "" {
		return nil, fmt.Errorf("get thread: thread id is required")
	}

	req, err := c.newRequest(ctx, http.MethodGet, threadsPath+"/"+url.PathEscape(threadID), nil)
	if err != nil {
		return nil, err
	}

	var env threadEnvelope
	if err := c.doJSON(req, &env); err != nil {
		return nil, fmt.Errorf("get thread %s: %w", threadID, err)
	}

	detail := &chattypes.ThreadDetail{
		Thread:   env.toThread(),
		Messages: env.toMessages(),
	}

	c.log.Debug("Thread fetched", "thread", threadID, "messages", len(detail.Messages))
	return detail, nil
}

// DeleteThread removes a thread on the backend. The returned boolean
// reflects the backend's success flag.
func (c *Client) DeleteThread(ctx context.Context, threadID string) (bool, error) {
	if threadID == "" {
		return false, fmt.Errorf("delete thread: thread id is required")
	}

	req, err := c.newRequest(ctx, http.MethodDelete, threadsPath+"/"+url.PathEscape(threadID), nil)
	if err != nil {
		return false, err
	}

	var deleted deleteThreadResponse
	if err := c.doJSON(req, &deleted); err != nil {
		return false, fmt.Errorf("delete thread %s: %w", threadID, err)
	}

	c.log.Debug("Thread deleted", "thread", threadID, "success", deleted.Success)
	return deleted.Success, nil
}

// SendMessage posts a message to a thread and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, threadID string, msg chattypes.OutgoingMessage) (*chattypes.Message, error) {
	if threadID == "" {
		return nil, fmt.Errorf("send message: thread id is required")
	}

	body, err := json.Marshal(newSendMessageRequest(msg))
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, messagesPath(threadID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var env messageEnvelope
	if err := c.doJSON(req, &env); err != nil {
		return nil, fmt.Errorf("send message to %s: %w", threadID, err)
	}

	reply := env.toMessage()
	c.log.Debug("Message exchange completed", "thread", threadID, "reply_length", len(reply.Content))
	return &reply, nil
}

// UploadFiles uploads raw file payloads as a multipart request, associating
// them with threadID when it is non-empty.
func (c *Client) UploadFiles(ctx context.Context, threadID string, files []chattypes.FileUpload) ([]chattypes.Attachment, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("upload files: no files provided")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, file := range files {
		// The backend accepts both field names; mirror the browser
		// client and send each file under both.
		for _, field := range []string{"file", "files"} {
			part, err := writer.CreateFormFile(field, file.Name)
			if err != nil {
				return nil, fmt.Errorf("upload files: %w", err)
			}
			if _, err := part.Write(file.Data); err != nil {
				return nil, fmt.Errorf("upload files: %w", err)
			}
		}
	}
	if threadID != "" {
		if err := writer.WriteField("threadId", threadID); err != nil {
			return nil, fmt.Errorf("upload files: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("upload files: %w", err)
	}

	path := uploadPath + "/" + url.PathEscape(c.company)
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var uploaded uploadResponse
	if err := c.doJSON(req, &uploaded); err != nil {
		return nil, fmt.Errorf("upload files: %w", err)
	}

	c.log.Debug("Files uploaded", "count", len(uploaded.Attachments), "thread", threadID)
	return uploaded.Attachments, nil
}

// messagesPath returns the messages endpoint for a thread.
func messagesPath(threadID string) string {
	return threadsPath + "/" + url.PathEscape(threadID) + "/messages"
}

// newRequest builds a request with the standard headers: JSON accept and
// content type, bearer authorization when a credential exists, and the
// user_id query parameter when the current user is known.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if user := c.creds.CurrentUser(); user != nil && user.Email != "" {
		q := req.URL.Query()
		q.Set("user_id", user.Email)
		req.URL.RawQuery = q.Encode()
	}

	logger.APIRequest(method, req.URL.String())
	return req, nil
}

// doJSON executes the request and decodes a JSON response into out.
// Non-2xx statuses become errors; 404 maps to chattypes.ErrThreadNotFound.
func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return chattypes.ErrThreadNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("api error: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
