// Package chattypes defines the shared conversation types for the Intersectx
// chat client. This file contains the thread and message types that make up a
// conversation session and its history.
package chattypes

import "time"

// Message roles. A message's role is set at creation and never changes.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
	RoleTool  = "tool"
)

// LastMessage is a short summary of the most recent message in a thread,
// shown in thread listings without loading the full history.
type LastMessage struct {
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread represents a persisted conversation session with ordered messages.
// Thread records carry summary metadata only; the message history lives in
// the session state while the thread is active.
type Thread struct {
	ID           string       `json:"id"`            // Opaque thread identifier
	Title        string       `json:"title"`         // Derived display label
	CreatedAt    time.Time    `json:"created_at"`    // Thread creation timestamp
	UpdatedAt    time.Time    `json:"updated_at"`    // Last message exchange timestamp
	MessageCount int          `json:"message_count"` // Number of messages in the thread
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	CreatedBy    string       `json:"created_by,omitempty"`
}

// ThreadTitle derives the display label for a thread from its identifier.
func ThreadTitle(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ToolCall records a single tool invocation attached to an assistant message.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Citation is a source reference attached to an assistant message.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Attachment describes an uploaded file associated with a message or thread.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// MessageMetadata carries the optional extras an assistant reply may include.
type MessageMetadata struct {
	Attachments []Attachment `json:"attachments,omitempty"`
	Citations   []Citation   `json:"citations,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	Model       string       `json:"model,omitempty"`
}

// Message is a single message in a conversation. Content is mutable only
// while an assistant reply is streaming; everything else is set at creation.
type Message struct {
	ID         string           `json:"id"`
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Timestamp  time.Time        `json:"timestamp"`
	UserID     string           `json:"user_id,omitempty"`
	UserName   string           `json:"user_name,omitempty"`
	IframeURLs []string         `json:"iframe_url,omitempty"`
	Metadata   *MessageMetadata `json:"metadata,omitempty"`
}

// ThreadDetail is a thread record together with its full message history,
// as returned by a thread fetch.
type ThreadDetail struct {
	Thread   Thread    `json:"thread"`
	Messages []Message `json:"messages"`
}

// User identifies the person the client is acting for.
type User struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName returns the user's full name, or the empty string when no
// name parts are set.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
