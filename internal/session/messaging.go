// Message send paths: synchronous request/response and incremental
// streaming. Both apply the human message optimistically before any
// network traffic and never propagate backend failures to the caller;
// failures become a recorded error plus a synthetic assistant reply.
package session

import (
	"context"
	"strings"

	"intersectx/internal/testutils"
	"intersectx/pkg/chattypes"
)

// Synthetic assistant replies used when the backend cannot answer.
const (
	errorReplyText = "Error connecting to the backend. Please check your backend server."
	emptyReplyText = "I received your message but couldn't generate a response."
)

// SendMessage posts content to the active thread and appends the assistant
// reply. The human message is appended immediately; if no thread is active
// one is created first and the optimistic message re-applied. Empty content
// is a no-op.
func (m *Manager) SendMessage(ctx context.Context, content string, attachmentIDs ...string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	human := m.newHumanMessage(content, attachmentIDs)

	m.mu.Lock()
	m.appendMessageLocked(human)
	threadID := m.activeThreadID
	m.mu.Unlock()

	threadID, ok := m.ensureThread(ctx, threadID, human)
	if !ok {
		return
	}

	reply, err := m.api.SendMessage(ctx, threadID, m.outgoing(content, attachmentIDs))
	if err != nil {
		m.failExchange(err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	msg := *reply
	if msg.ID == "" {
		msg.ID = testutils.GenerateUUID(m)
	}
	if msg.Content == "" {
		msg.Content = emptyReplyText
	}
	m.appendMessageLocked(&msg)
	m.updateThreadAfterExchangeLocked(threadID, msg.Content)
}

// SendMessageStreaming behaves like SendMessage but consumes the assistant
// reply incrementally: an empty placeholder message is appended up front
// and each chunk extends its content in place, matched by message ID.
// Starting a new streamed send implicitly cancels any previous one; an
// explicit Stop cancels the transport and retains partial content. The
// call blocks until the stream completes or is cancelled.
func (m *Manager) SendMessageStreaming(ctx context.Context, content string, attachmentIDs ...string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	human := m.newHumanMessage(content, attachmentIDs)

	m.mu.Lock()
	m.appendMessageLocked(human)
	threadID := m.activeThreadID
	m.mu.Unlock()

	threadID, ok := m.ensureThread(ctx, threadID, human)
	if !ok {
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.streamCancel != nil {
		// Supersede the previous in-flight stream.
		m.streamCancel()
	}
	m.streamCancel = cancel
	m.streamSeq++
	seq := m.streamSeq

	placeholder := &chattypes.Message{
		ID:        testutils.GenerateUUID(m),
		Role:      chattypes.RoleAI,
		Timestamp: testutils.GetCurrentTime(m),
	}
	m.appendMessageLocked(placeholder)
	placeholderID := placeholder.ID
	m.mu.Unlock()

	ch, err := m.api.StreamMessage(streamCtx, threadID, m.outgoing(content, attachmentIDs))
	if err != nil {
		cancel()
		m.mu.Lock()
		m.lastErr = err
		m.setMessageContentLocked(placeholderID, errorReplyText)
		m.releaseStreamLocked(seq)
		m.mu.Unlock()
		m.log.Error("Stream open failed", "thread", threadID, "error", err)
		return
	}

	var streamed strings.Builder
	completed := false

	for chunk := range ch {
		// The transport buffers chunks; anything still queued when the
		// stream is cancelled must not land, completion marker included.
		if streamCtx.Err() != nil {
			break
		}
		if chunk.Error != nil {
			m.mu.Lock()
			m.lastErr = chunk.Error
			m.setMessageContentLocked(placeholderID, errorReplyText)
			m.mu.Unlock()
			m.log.Error("Stream failed", "thread", threadID, "error", chunk.Error)
			break
		}
		if chunk.Done {
			completed = true
			break
		}

		streamed.WriteString(chunk.Content)

		m.mu.Lock()
		if msg, found := m.byID[placeholderID]; found {
			msg.Content += chunk.Content
			if len(chunk.IframeURLs) > 0 {
				msg.IframeURLs = chunk.IframeURLs
			}
		}
		m.mu.Unlock()

		if m.onChunk != nil {
			m.onChunk(chunk)
		}
	}

	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseStreamLocked(seq)
	if completed {
		m.updateThreadAfterExchangeLocked(threadID, streamed.String())
	}
}

// Stop aborts the in-flight stream, if any. Partial content already
// applied is retained; cancellation is not an error.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
}

// releaseStreamLocked clears the cancel slot unless a newer stream has
// already claimed it.
func (m *Manager) releaseStreamLocked(seq uint64) {
	if m.streamSeq == seq {
		m.streamCancel = nil
	}
}

// ensureThread guarantees a thread exists for a send. When threadID is
// empty it creates one; creation clears the message list, so the
// optimistic human message is re-applied afterwards. On creation failure
// the exchange fails with a synthetic reply and ok is false.
func (m *Manager) ensureThread(ctx context.Context, threadID string, human *chattypes.Message) (string, bool) {
	if threadID != "" {
		return threadID, true
	}

	created, err := m.CreateThread(ctx)
	if err != nil || created == "" {
		m.failExchange(err)
		return "", false
	}

	m.mu.Lock()
	m.resetMessagesLocked([]*chattypes.Message{human})
	m.mu.Unlock()
	return created, true
}

// failExchange records err (if any) and appends a synthetic assistant
// error reply so the conversation never dead-ends silently.
func (m *Manager) failExchange(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.lastErr = err
	}
	m.appendMessageLocked(&chattypes.Message{
		ID:        testutils.GenerateUUID(m),
		Role:      chattypes.RoleAI,
		Content:   errorReplyText,
		Timestamp: testutils.GetCurrentTime(m),
	})
}

func (m *Manager) setMessageContentLocked(messageID, content string) {
	if msg, found := m.byID[messageID]; found {
		msg.Content = content
	}
}

// newHumanMessage builds the optimistic human-role message, stamped with
// the current user's identity when credentials are available.
func (m *Manager) newHumanMessage(content string, attachmentIDs []string) *chattypes.Message {
	msg := &chattypes.Message{
		ID:        testutils.GenerateUUID(m),
		Role:      chattypes.RoleHuman,
		Content:   content,
		Timestamp: testutils.GetCurrentTime(m),
	}

	if m.creds != nil {
		if user := m.creds.CurrentUser(); user != nil {
			msg.UserID = user.Email
			msg.UserName = user.DisplayName()
		}
	}

	if len(attachmentIDs) > 0 {
		meta := &chattypes.MessageMetadata{}
		for _, id := range attachmentIDs {
			meta.Attachments = append(meta.Attachments, chattypes.Attachment{ID: id})
		}
		msg.Metadata = meta
	}

	return msg
}

// outgoing builds the API payload for a send, stamped with the current
// user's identity.
func (m *Manager) outgoing(content string, attachmentIDs []string) chattypes.OutgoingMessage {
	out := chattypes.OutgoingMessage{
		Content:       content,
		AttachmentIDs: attachmentIDs,
	}
	if m.creds != nil {
		if user := m.creds.CurrentUser(); user != nil {
			out.UserID = user.Email
			out.UserName = user.DisplayName()
		}
	}
	return out
}
