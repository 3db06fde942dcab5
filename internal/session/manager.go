// Package session implements the chat session manager: it owns the thread
// list and the active conversation, mediates all reads and writes against
// the remote thread API, and keeps the visible state consistent under
// overlapping operations (rapid navigation, duplicate UI events, network
// latency).
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	cache "github.com/patrickmn/go-cache"

	"intersectx/internal/logger"
	"intersectx/internal/testutils"
	"intersectx/pkg/chattypes"
)

// Debounce windows for thread operations. Repeated triggers inside the
// window are no-ops.
const (
	DefaultLoadDebounce   = 1 * time.Second
	DefaultCreateDebounce = 2 * time.Second
)

const createDebounceKey = "create"

// ThreadAPI is the remote contract the manager drives. It is implemented
// by the api package and by test fakes.
type ThreadAPI interface {
	ListThreads(ctx context.Context) ([]chattypes.Thread, error)
	CreateThread(ctx context.Context) (string, error)
	GetThread(ctx context.Context, threadID string) (*chattypes.ThreadDetail, error)
	DeleteThread(ctx context.Context, threadID string) (bool, error)
	SendMessage(ctx context.Context, threadID string, msg chattypes.OutgoingMessage) (*chattypes.Message, error)
	StreamMessage(ctx context.Context, threadID string, msg chattypes.OutgoingMessage) (<-chan chattypes.StreamChunk, error)
	UploadFiles(ctx context.Context, threadID string, files []chattypes.FileUpload) ([]chattypes.Attachment, error)
}

// CredentialSource supplies the identity stamped onto outgoing messages.
type CredentialSource interface {
	CurrentUser() *chattypes.User
}

// Options configures a Manager. Zero values fall back to the defaults.
type Options struct {
	LoadDebounce   time.Duration
	CreateDebounce time.Duration
	TestMode       bool

	// OnStreamChunk, when set, observes every applied streaming chunk.
	// It is called outside the manager's critical section.
	OnStreamChunk func(chattypes.StreamChunk)
}

// Manager is the chat session state machine. One instance exists per
// active user session; all mutations of the thread list and message list
// go through it. It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	api   ThreadAPI
	creds CredentialSource

	threads        []*chattypes.Thread
	messages       []*chattypes.Message
	byID           map[string]*chattypes.Message
	activeThreadID string

	// loadedThreadID names the thread whose history the message list
	// currently reflects; empty while a load is pending or after a clear.
	loadedThreadID string

	// lastErr is the single last-error slot; each failing operation
	// overwrites it, successes of SwitchThread clear it.
	lastErr error

	// threadsFetched is set once the initial list fetch has resolved;
	// threadsLoading marks it in flight; threadsGen bumps on invalidation
	// so a resolving fetch can tell its result is stale.
	threadsFetched bool
	threadsLoading bool
	threadsGen     uint64

	loadingThread bool

	// debounce holds TTL entries for the create window and the
	// per-thread load windows; presence of a key means "inside window".
	debounce       *cache.Cache
	loadDebounce   time.Duration
	createDebounce time.Duration

	streamCancel context.CancelFunc
	streamSeq    uint64

	onChunk  func(chattypes.StreamChunk)
	testMode bool
	log      *log.Logger
}

// NewManager creates a session manager backed by the given thread API.
// creds may be nil for anonymous sessions.
func NewManager(threadAPI ThreadAPI, creds CredentialSource, opts Options) *Manager {
	if opts.LoadDebounce <= 0 {
		opts.LoadDebounce = DefaultLoadDebounce
	}
	if opts.CreateDebounce <= 0 {
		opts.CreateDebounce = DefaultCreateDebounce
	}

	return &Manager{
		api:            threadAPI,
		creds:          creds,
		byID:           make(map[string]*chattypes.Message),
		debounce:       cache.New(opts.LoadDebounce, time.Minute),
		loadDebounce:   opts.LoadDebounce,
		createDebounce: opts.CreateDebounce,
		onChunk:        opts.OnStreamChunk,
		testMode:       opts.TestMode,
		log:            logger.NewStyledLogger("Session"),
	}
}

// IsTestMode reports whether deterministic IDs and timestamps are in use.
func (m *Manager) IsTestMode() bool {
	return m.testMode
}

// ListThreads fetches all threads for the current user on first use;
// subsequent calls return cached state until InvalidateThreads. A call
// arriving while the initial fetch is in flight returns the current cache
// without issuing a second fetch. Fetch failures are recorded and yield
// the cached (possibly empty) list.
func (m *Manager) ListThreads(ctx context.Context) []chattypes.Thread {
	m.mu.Lock()
	if m.threadsFetched || m.threadsLoading {
		out := m.threadsCopyLocked()
		m.mu.Unlock()
		return out
	}
	m.threadsLoading = true
	gen := m.threadsGen
	m.mu.Unlock()

	threads, err := m.api.ListThreads(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threadsLoading = false
	if gen != m.threadsGen {
		m.log.Debug("Discarding stale thread list fetch")
		return m.threadsCopyLocked()
	}
	m.threadsFetched = true
	if err != nil {
		m.lastErr = err
		m.log.Error("Failed to fetch threads", "error", err)
		return m.threadsCopyLocked()
	}

	list := make([]*chattypes.Thread, 0, len(threads))
	for i := range threads {
		thread := threads[i]
		list = append(list, &thread)
	}
	m.threads = list

	m.log.Debug("Thread list loaded", "count", len(list))
	return m.threadsCopyLocked()
}

// InvalidateThreads forces the next ListThreads call to refetch. A fetch
// already in flight when this is called resolves as stale and is discarded.
func (m *Manager) InvalidateThreads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threadsFetched = false
	m.threadsGen++
}

// CreateThread requests a new thread from the backend. On success the
// thread is prepended to the list, made active, and the message list is
// cleared. Calls inside the debounce window are no-ops returning an empty
// ID with no error; callers must tolerate receiving no new thread.
func (m *Manager) CreateThread(ctx context.Context) (string, error) {
	m.mu.Lock()
	if _, found := m.debounce.Get(createDebounceKey); found {
		m.log.Debug("Thread creation debounced")
		m.mu.Unlock()
		return "", nil
	}
	m.debounce.Set(createDebounceKey, time.Now(), m.createDebounce)
	m.mu.Unlock()

	threadID, err := m.api.CreateThread(ctx)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		m.log.Error("Thread creation failed", "error", err)
		return "", err
	}

	now := testutils.GetCurrentTime(m)

	m.mu.Lock()
	defer m.mu.Unlock()
	thread := &chattypes.Thread{
		ID:        threadID,
		Title:     chattypes.ThreadTitle(threadID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.threads = append([]*chattypes.Thread{thread}, m.threads...)
	m.activeThreadID = threadID
	m.resetMessagesLocked(nil)
	// A freshly created thread has no server-side history to load.
	m.loadedThreadID = threadID

	logger.ThreadOperation("create", threadID)
	return threadID, nil
}

// SwitchThread makes threadID the active thread and loads its history.
// Switching to the already-active, already-loaded thread is a no-op. The
// active thread ID is set and the visible message list cleared before the
// fetch; a load already in flight or a load inside the per-thread debounce
// window drops the fetch but keeps the selection. A backend not-found is
// treated as a valid empty thread. Stale fetch results for a thread that
// is no longer active are discarded.
func (m *Manager) SwitchThread(ctx context.Context, threadID string) error {
	if threadID == "" {
		return nil
	}

	m.mu.Lock()
	if threadID == m.activeThreadID && m.loadedThreadID == threadID {
		m.log.Debug("Thread already active and loaded", "thread", threadID)
		m.mu.Unlock()
		return nil
	}

	m.lastErr = nil
	if threadID != m.activeThreadID {
		m.activeThreadID = threadID
		m.resetMessagesLocked(nil)
		m.loadedThreadID = ""
	}

	if m.loadingThread {
		m.log.Debug("Thread load already in flight, dropping", "thread", threadID)
		m.mu.Unlock()
		return nil
	}
	key := "load:" + threadID
	if _, found := m.debounce.Get(key); found {
		m.log.Debug("Thread load debounced", "thread", threadID)
		m.mu.Unlock()
		return nil
	}
	m.debounce.Set(key, time.Now(), m.loadDebounce)
	m.loadingThread = true
	m.mu.Unlock()

	detail, err := m.api.GetThread(ctx, threadID)

	m.mu.Lock()
	defer func() {
		m.loadingThread = false
		m.mu.Unlock()
	}()

	if m.activeThreadID != threadID {
		m.log.Debug("Discarding stale thread load", "thread", threadID, "active", m.activeThreadID)
		return nil
	}

	if err != nil {
		if errors.Is(err, chattypes.ErrThreadNotFound) {
			m.log.Debug("Thread not found, treating as new empty thread", "thread", threadID)
			m.resetMessagesLocked(nil)
			m.loadedThreadID = threadID
			return nil
		}
		m.lastErr = err
		m.log.Error("Thread load failed", "thread", threadID, "error", err)
		return err
	}

	msgs := make([]*chattypes.Message, 0, len(detail.Messages))
	for i := range detail.Messages {
		msg := detail.Messages[i]
		if msg.ID == "" {
			msg.ID = testutils.GenerateUUID(m)
		}
		msgs = append(msgs, &msg)
	}
	m.resetMessagesLocked(msgs)
	m.updateThreadFromDetailLocked(detail)
	m.loadedThreadID = threadID

	logger.ThreadOperation("switch", threadID, "messages", len(msgs))
	return nil
}

// DeleteThread optimistically removes the thread locally, then confirms
// with the backend. On failure the thread list is rolled back to its
// pre-delete snapshot. Returns whether the deletion succeeded.
func (m *Manager) DeleteThread(ctx context.Context, threadID string) bool {
	if threadID == "" {
		return false
	}

	m.mu.Lock()
	snapshot := make([]*chattypes.Thread, len(m.threads))
	copy(snapshot, m.threads)

	filtered := m.threads[:0:0]
	for _, thread := range m.threads {
		if thread.ID != threadID {
			filtered = append(filtered, thread)
		}
	}
	m.threads = filtered

	if m.activeThreadID == threadID {
		m.activeThreadID = ""
		m.resetMessagesLocked(nil)
		m.loadedThreadID = ""
	}
	m.mu.Unlock()

	ok, err := m.api.DeleteThread(ctx, threadID)
	if err != nil || !ok {
		m.mu.Lock()
		m.threads = snapshot
		if err != nil {
			m.lastErr = err
		}
		m.mu.Unlock()
		m.log.Error("Thread deletion failed, rolled back", "thread", threadID, "error", err)
		return false
	}

	logger.ThreadOperation("delete", threadID)
	return true
}

// UploadAttachments uploads raw file payloads, associated with the active
// thread if one exists. On backend failure it returns locally constructed
// placeholders so composing never blocks on upload errors.
func (m *Manager) UploadAttachments(ctx context.Context, files []chattypes.FileUpload) []chattypes.Attachment {
	m.mu.Lock()
	threadID := m.activeThreadID
	m.mu.Unlock()

	attachments, err := m.api.UploadFiles(ctx, threadID, files)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		m.log.Warn("Upload failed, using local placeholders", "error", err, "files", len(files))

		placeholders := make([]chattypes.Attachment, 0, len(files))
		for _, file := range files {
			id := testutils.GenerateUUID(m)
			placeholders = append(placeholders, chattypes.Attachment{
				ID:   id,
				Name: file.Name,
				Type: file.ContentType,
				Size: int64(len(file.Data)),
				URL:  "local://" + id,
			})
		}
		return placeholders
	}

	return attachments
}

// ClearActiveThread resets the active thread selection and message list
// without contacting the backend.
func (m *Manager) ClearActiveThread() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activeThreadID = ""
	m.loadedThreadID = ""
	m.resetMessagesLocked(nil)
	m.lastErr = nil
}

// Threads returns a copy of the current thread list, newest first.
func (m *Manager) Threads() []chattypes.Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threadsCopyLocked()
}

// Messages returns a copy of the active thread's message list.
func (m *Manager) Messages() []chattypes.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]chattypes.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, *msg)
	}
	return out
}

// ActiveThreadID returns the current thread selection, or the empty
// string when no thread is active.
func (m *Manager) ActiveThreadID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeThreadID
}

// LastError returns the most recent recorded operation error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) threadsCopyLocked() []chattypes.Thread {
	out := make([]chattypes.Thread, 0, len(m.threads))
	for _, thread := range m.threads {
		out = append(out, *thread)
	}
	return out
}

// resetMessagesLocked replaces the message list and rebuilds the ID index.
func (m *Manager) resetMessagesLocked(msgs []*chattypes.Message) {
	m.messages = msgs
	m.byID = make(map[string]*chattypes.Message, len(msgs))
	for _, msg := range msgs {
		m.byID[msg.ID] = msg
	}
}

func (m *Manager) appendMessageLocked(msg *chattypes.Message) {
	m.messages = append(m.messages, msg)
	m.byID[msg.ID] = msg
}

func (m *Manager) findThreadLocked(threadID string) *chattypes.Thread {
	for _, thread := range m.threads {
		if thread.ID == threadID {
			return thread
		}
	}
	return nil
}

func (m *Manager) updateThreadFromDetailLocked(detail *chattypes.ThreadDetail) {
	thread := m.findThreadLocked(detail.Thread.ID)
	if thread == nil {
		return
	}
	thread.Title = detail.Thread.Title
	thread.CreatedAt = detail.Thread.CreatedAt
	thread.UpdatedAt = detail.Thread.UpdatedAt
	thread.MessageCount = len(detail.Messages)
	if detail.Thread.CreatedBy != "" {
		thread.CreatedBy = detail.Thread.CreatedBy
	}
}

// updateThreadAfterExchangeLocked applies the post-exchange metadata
// update: two new messages, a fresh timestamp, and a reply snippet.
func (m *Manager) updateThreadAfterExchangeLocked(threadID, replyContent string) {
	thread := m.findThreadLocked(threadID)
	if thread == nil {
		return
	}
	now := testutils.GetCurrentTime(m)
	thread.MessageCount += 2
	thread.UpdatedAt = now
	thread.LastMessage = &chattypes.LastMessage{
		Content:   snippet(replyContent),
		Sender:    "assistant",
		Timestamp: now,
	}
}

// snippet truncates reply content for thread summaries.
func snippet(content string) string {
	if len(content) > 50 {
		return content[:50] + "..."
	}
	return content
}
