package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intersectx/internal/auth"
	"intersectx/pkg/chattypes"
)

func newTestClient(t *testing.T, handler http.Handler, creds auth.CredentialSource) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	if creds == nil {
		creds = auth.NewStore()
	}
	return NewClient(server.URL, "venture-insights", 5*time.Second, creds)
}

func loggedInStore(token string) *auth.Store {
	store := auth.NewStore()
	store.Login(token, &chattypes.User{
		Email:     "ada@intersectx.io",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	return store
}

func TestClient_ListThreads(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chat/threads", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"id": "11112222-3333-4444-5555-666677778888",
				"created_at": "2025-06-01T10:00:00Z",
				"updated_at": "2025-06-01T10:05:00Z",
				"message_count": 4,
				"last_message": {"content": "sounds good", "sender": "assistant", "timestamp": "2025-06-01T10:05:00Z"}
			},
			{
				"id": "t2",
				"messages": [
					{"id": "m1", "content": "hi", "sender": "user", "timestamp": "2025-06-01T09:00:00Z"},
					{"id": "m2", "content": "hello", "sender": "assistant", "timestamp": "2025-06-01T09:00:05Z"}
				]
			}
		]`))
	})
	client := newTestClient(t, handler, nil)

	threads, err := client.ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 2)

	first := threads[0]
	assert.Equal(t, "11112222-3333-4444-5555-666677778888", first.ID)
	assert.Equal(t, "11112222", first.Title, "title derives from the id prefix")
	assert.Equal(t, 4, first.MessageCount)
	require.NotNil(t, first.LastMessage)
	assert.Equal(t, "sounds good", first.LastMessage.Content)
	assert.Equal(t, "assistant", first.LastMessage.Sender)

	second := threads[1]
	assert.Equal(t, 2, second.MessageCount, "count falls back to the embedded messages")
	require.NotNil(t, second.LastMessage)
	assert.Equal(t, "hello", second.LastMessage.Content, "summary falls back to the final message")
}

func TestClient_CreateThread(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/threads", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"thread_id": "new-thread-1"}`))
	})
	client := newTestClient(t, handler, nil)

	threadID, err := client.CreateThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-thread-1", threadID)
}

func TestClient_CreateThread_MissingIDIsAnError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	client := newTestClient(t, handler, nil)

	_, err := client.CreateThread(context.Background())
	assert.ErrorContains(t, err, "no thread id")
}

func TestClient_GetThread(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/threads/t1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "t1",
			"created_at": "2025-06-01T10:00:00Z",
			"updated_at": "2025-06-01T10:05:00Z",
			"created_by": "ada@intersectx.io",
			"messages": [
				{"id": "m1", "content": "what changed?", "sender": "user", "timestamp": "2025-06-01T10:00:00Z", "user_id": "ada@intersectx.io", "user_name": "Ada Lovelace"},
				{"id": "m2", "content": "three things", "sender": "assistant", "timestamp": "2025-06-01T10:00:10Z",
					"iframe_url": ["https://charts.example/x"],
					"metadata": {"model": "vi-1", "formatted_tool_calls": [{"name": "search", "arguments": "{\"q\":\"changes\"}"}]}},
				{"id": "m3", "content": "tool output", "sender": "system", "timestamp": "2025-06-01T10:00:08Z"}
			]
		}`))
	})
	client := newTestClient(t, handler, nil)

	detail, err := client.GetThread(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, "t1", detail.Thread.ID)
	assert.Equal(t, "ada@intersectx.io", detail.Thread.CreatedBy)
	require.Len(t, detail.Messages, 3)

	assert.Equal(t, chattypes.RoleHuman, detail.Messages[0].Role)
	assert.Equal(t, "Ada Lovelace", detail.Messages[0].UserName)

	reply := detail.Messages[1]
	assert.Equal(t, chattypes.RoleAI, reply.Role)
	assert.Equal(t, []string{"https://charts.example/x"}, reply.IframeURLs)
	require.NotNil(t, reply.Metadata)
	assert.Equal(t, "vi-1", reply.Metadata.Model)
	require.Len(t, reply.Metadata.ToolCalls, 1)
	assert.Equal(t, "search", reply.Metadata.ToolCalls[0].Name)

	assert.Equal(t, chattypes.RoleTool, detail.Messages[2].Role, "unknown senders map to the tool role")
}

func TestClient_GetThread_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "thread not found", http.StatusNotFound)
	})
	client := newTestClient(t, handler, nil)

	_, err := client.GetThread(context.Background(), "missing")
	assert.ErrorIs(t, err, chattypes.ErrThreadNotFound)
}

func TestClient_DeleteThread(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/chat/threads/t1", r.URL.Path)
		_, _ = w.Write([]byte(`{"success": true}`))
	})
	client := newTestClient(t, handler, nil)

	ok, err := client.DeleteThread(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_DeleteThread_BackendRefuses(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success": false}`))
	})
	client := newTestClient(t, handler, nil)

	ok, err := client.DeleteThread(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_SendMessage(t *testing.T) {
	var payload map[string]interface{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/threads/t1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"id": "m9", "content": "the reply", "sender": "assistant", "timestamp": "2025-06-01T10:00:00Z"}`))
	})
	client := newTestClient(t, handler, nil)

	reply, err := client.SendMessage(context.Background(), "t1", chattypes.OutgoingMessage{
		Content:       "what changed?",
		AttachmentIDs: []string{"att-1"},
		UserID:        "ada@intersectx.io",
		UserName:      "Ada Lovelace",
	})
	require.NoError(t, err)

	assert.Equal(t, "what changed?", payload["content"])
	assert.Equal(t, "ada@intersectx.io", payload["user_id"])
	assert.Equal(t, "Ada Lovelace", payload["user_name"])
	attachments, ok := payload["attachments"].([]interface{})
	require.True(t, ok)
	require.Len(t, attachments, 1)

	assert.Equal(t, "m9", reply.ID)
	assert.Equal(t, chattypes.RoleAI, reply.Role)
	assert.Equal(t, "the reply", reply.Content)
}

func TestClient_SendMessage_ServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream model unavailable", http.StatusBadGateway)
	})
	client := newTestClient(t, handler, nil)

	_, err := client.SendMessage(context.Background(), "t1", chattypes.OutgoingMessage{Content: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream model unavailable")
	assert.False(t, errors.Is(err, chattypes.ErrThreadNotFound))
}

func TestClient_AuthHeaderAndUserQuery(t *testing.T) {
	var gotAuth, gotUserID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUserID = r.URL.Query().Get("user_id")
		_, _ = w.Write([]byte(`[]`))
	})
	client := newTestClient(t, handler, loggedInStore("secret-token"))

	_, err := client.ListThreads(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "ada@intersectx.io", gotUserID)
}

func TestClient_AnonymousRequestOmitsAuth(t *testing.T) {
	var gotAuth string
	var hasUserID bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		hasUserID = r.URL.Query().Has("user_id")
		_, _ = w.Write([]byte(`[]`))
	})
	client := newTestClient(t, handler, nil)

	_, err := client.ListThreads(context.Background())
	require.NoError(t, err)

	assert.Empty(t, gotAuth)
	assert.False(t, hasUserID)
}

func TestClient_UploadFiles(t *testing.T) {
	type uploadedPart struct {
		field string
		name  string
		data  string
	}
	var (
		parts    []uploadedPart
		threadID string
		path     string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		threadID = r.FormValue("threadId")
		for _, field := range []string{"file", "files"} {
			for _, header := range r.MultipartForm.File[field] {
				f, err := header.Open()
				require.NoError(t, err)
				buf, err := io.ReadAll(f)
				_ = f.Close()
				require.NoError(t, err)
				parts = append(parts, uploadedPart{field: field, name: header.Filename, data: string(buf)})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"attachments": [{"id": "att-1", "name": "deck.pdf", "url": "https://files.example/att-1"}]}`))
	})
	client := newTestClient(t, handler, nil)

	attachments, err := client.UploadFiles(context.Background(), "t1", []chattypes.FileUpload{
		{Name: "deck.pdf", ContentType: "application/pdf", Data: []byte("pdf-bytes")},
	})
	require.NoError(t, err)

	assert.Equal(t, "/files/upload/venture-insights", path)
	assert.Equal(t, "t1", threadID)
	require.Len(t, parts, 2, "each file is sent under both accepted field names")
	assert.Equal(t, "deck.pdf", parts[0].name)
	assert.Equal(t, "pdf-bytes", parts[0].data)
	assert.Equal(t, "pdf-bytes", parts[1].data)

	require.Len(t, attachments, 1)
	assert.Equal(t, "att-1", attachments[0].ID)
	assert.Equal(t, "https://files.example/att-1", attachments[0].URL)
}

func TestClient_UploadFiles_NoFiles(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), nil)

	_, err := client.UploadFiles(context.Background(), "t1", nil)
	assert.ErrorContains(t, err, "no files")
}

func TestClient_EmptyThreadIDRejectedLocally(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	})
	client := newTestClient(t, handler, nil)
	ctx := context.Background()

	_, err := client.GetThread(ctx, "")
	assert.Error(t, err)

	_, err = client.DeleteThread(ctx, "")
	assert.Error(t, err)

	_, err = client.SendMessage(ctx, "", chattypes.OutgoingMessage{Content: "hi"})
	assert.Error(t, err)

	_, err = client.StreamMessage(ctx, "", chattypes.OutgoingMessage{Content: "hi"})
	assert.Error(t, err)

	assert.False(t, called)
}
