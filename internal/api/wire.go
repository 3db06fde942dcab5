// Wire types for the thread API. The backend speaks in "user"/"assistant"
// sender values and RFC 3339 timestamp strings; this file converts between
// that shape and the chattypes domain types.
package api

import (
	"time"

	"intersectx/pkg/chattypes"
)

type lastMessageEnvelope struct {
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

type metadataEnvelope struct {
	Tools     []toolCallEnvelope       `json:"formatted_tool_calls,omitempty"`
	Citations []chattypes.Citation     `json:"citations,omitempty"`
	Model     string                   `json:"model,omitempty"`
	Files     []chattypes.Attachment   `json:"attachments,omitempty"`
}

type toolCallEnvelope struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type messageEnvelope struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Sender    string            `json:"sender"`
	Timestamp string            `json:"timestamp"`
	IframeURL []string          `json:"iframe_url,omitempty"`
	Metadata  *metadataEnvelope `json:"metadata,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	UserName  string            `json:"user_name,omitempty"`
}

type threadEnvelope struct {
	ID           string               `json:"id"`
	CreatedAt    string               `json:"created_at"`
	UpdatedAt    string               `json:"updated_at"`
	CreatedBy    string               `json:"created_by"`
	Messages     []messageEnvelope    `json:"messages"`
	MessageCount int                  `json:"message_count"`
	LastMessage  *lastMessageEnvelope `json:"last_message"`
}

type createThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

type deleteThreadResponse struct {
	Success bool `json:"success"`
}

type uploadResponse struct {
	Attachments []chattypes.Attachment `json:"attachments"`
}

type sendMessageRequest struct {
	Content     string          `json:"content"`
	Attachments []attachmentRef `json:"attachments,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	UserName    string          `json:"user_name,omitempty"`
}

type attachmentRef struct {
	ID string `json:"id"`
}

func newSendMessageRequest(msg chattypes.OutgoingMessage) sendMessageRequest {
	req := sendMessageRequest{
		Content:  msg.Content,
		UserID:   msg.UserID,
		UserName: msg.UserName,
	}
	for _, id := range msg.AttachmentIDs {
		req.Attachments = append(req.Attachments, attachmentRef{ID: id})
	}
	return req
}

// parseTime parses an RFC 3339 timestamp, falling back to the current time
// when the backend omits or mangles it.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}

// roleForSender maps the backend's sender values onto message roles.
func roleForSender(sender string) string {
	switch sender {
	case "user":
		return chattypes.RoleHuman
	case "assistant":
		return chattypes.RoleAI
	default:
		return chattypes.RoleTool
	}
}

func (e *threadEnvelope) toThread() chattypes.Thread {
	thread := chattypes.Thread{
		ID:           e.ID,
		Title:        chattypes.ThreadTitle(e.ID),
		CreatedAt:    parseTime(e.CreatedAt),
		UpdatedAt:    parseTime(e.UpdatedAt),
		MessageCount: e.MessageCount,
		CreatedBy:    e.CreatedBy,
	}
	if thread.MessageCount == 0 {
		thread.MessageCount = len(e.Messages)
	}

	switch {
	case e.LastMessage != nil:
		thread.LastMessage = &chattypes.LastMessage{
			Content:   e.LastMessage.Content,
			Sender:    e.LastMessage.Sender,
			Timestamp: parseTime(e.LastMessage.Timestamp),
		}
	case len(e.Messages) > 0:
		last := e.Messages[len(e.Messages)-1]
		thread.LastMessage = &chattypes.LastMessage{
			Content:   last.Content,
			Sender:    last.Sender,
			Timestamp: parseTime(last.Timestamp),
		}
	}

	return thread
}

func (e *threadEnvelope) toMessages() []chattypes.Message {
	messages := make([]chattypes.Message, 0, len(e.Messages))
	for _, env := range e.Messages {
		messages = append(messages, env.toMessage())
	}
	return messages
}

func (e *messageEnvelope) toMessage() chattypes.Message {
	msg := chattypes.Message{
		ID:         e.ID,
		Role:       roleForSender(e.Sender),
		Content:    e.Content,
		Timestamp:  parseTime(e.Timestamp),
		IframeURLs: e.IframeURL,
		UserID:     e.UserID,
		UserName:   e.UserName,
	}

	if e.Metadata != nil {
		meta := &chattypes.MessageMetadata{
			Citations:   e.Metadata.Citations,
			Model:       e.Metadata.Model,
			Attachments: e.Metadata.Files,
		}
		for _, tool := range e.Metadata.Tools {
			meta.ToolCalls = append(meta.ToolCalls, chattypes.ToolCall{
				Name:      tool.Name,
				Arguments: tool.Arguments,
			})
		}
		msg.Metadata = meta
	}

	return msg
}
