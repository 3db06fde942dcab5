// Package chattypes defines streaming and transport-facing types for the
// Intersectx chat client.
package chattypes

import "errors"

// ErrThreadNotFound reports that the backend has no record of a thread.
// The session manager treats this as a valid empty thread, never as a fault.
var ErrThreadNotFound = errors.New("thread not found")

// StreamChunk represents a single chunk of a streaming assistant response.
type StreamChunk struct {
	Content    string   // The text content of this chunk
	IframeURLs []string // Chart URLs attached to this chunk, if any
	Done       bool     // Whether this is the final chunk
	Error      error    // Any error that occurred during streaming
}

// OutgoingMessage is the payload for sending a message to a thread.
type OutgoingMessage struct {
	Content       string
	AttachmentIDs []string
	UserID        string
	UserName      string
}

// FileUpload is a raw file payload handed to the upload operation.
type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Context exposes the runtime switches shared across packages.
// It is implemented by the session manager and by test fixtures.
type Context interface {
	// IsTestMode returns true when deterministic IDs and timestamps
	// should be generated instead of real ones.
	IsTestMode() bool
}
