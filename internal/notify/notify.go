// Package notify provides the in-process notification hub: user-facing
// toasts for the dashboard to poll, and the upload-completed signal the file
// catalog refreshes on.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level indicates whether a toast reports success or failure.
type Level string

const (
	// LevelSuccess marks a completed action.
	LevelSuccess Level = "success"
	// LevelError marks a failed action.
	LevelError Level = "error"
)

// Toast is one dismissible user-visible notification.
type Toast struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// maxPending bounds the toast backlog when nothing is polling.
const maxPending = 50

// Hub fans user notifications out to the dashboard and refresh signals out to
// subscribers. Safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	pending []Toast
	subs    map[int]chan struct{}
	nextSub int
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan struct{})}
}

// Success queues a success toast.
func (h *Hub) Success(msg string) {
	h.push(LevelSuccess, msg)
}

// Error queues an error toast.
func (h *Hub) Error(msg string) {
	h.push(LevelError, msg)
}

func (h *Hub) push(level Level, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		CreatedAt: time.Now(),
	})
	if len(h.pending) > maxPending {
		h.pending = h.pending[len(h.pending)-maxPending:]
	}
}

// Drain returns all pending toasts and clears them. Polling the dashboard
// notification endpoint dismisses what it sees.
func (h *Hub) Drain() []Toast {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.pending
	h.pending = nil
	return out
}

// UploadCompleted signals every subscriber that a mutating action finished,
// whatever its outcome. Sends never block; a subscriber that has fallen
// far behind misses signals rather than stalling the sender.
func (h *Hub) UploadCompleted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SubscribeUploads registers for upload-completed signals. The returned
// function unsubscribes.
func (h *Hub) SubscribeUploads() (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	ch := make(chan struct{}, 16)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}
