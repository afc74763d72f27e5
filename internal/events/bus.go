// Package events is the in-process notification bus. Publishers fire typed
// events and never block: a subscriber that cannot keep up loses events
// rather than stalling the answering path.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/medrevise/medrevise/internal/quiz"
)

type Type string

const (
	TypeResultRecorded  Type = "result_recorded"
	TypeSessionComplete Type = "session_complete"
	TypePinToggled      Type = "pin_toggled"
	TypeCommentPosted   Type = "comment_posted"
	TypeLectureImported Type = "lecture_imported"
)

// Event carries one notification. Data holds the payload struct matching
// Type; subscribers type-switch on it.
type Event struct {
	Type   Type        `json:"type"`
	UserID string      `json:"user_id,omitempty"`
	At     time.Time   `json:"at"`
	Data   interface{} `json:"data,omitempty"`
}

type ResultRecorded struct {
	SessionID  string      `json:"session_id"`
	LectureID  string      `json:"lecture_id"`
	QuestionID string      `json:"question_id"`
	Result     quiz.Result `json:"result"`
	Score      float64     `json:"score"`
}

type SessionComplete struct {
	SessionID string `json:"session_id"`
	LectureID string `json:"lecture_id"`
}

type PinToggled struct {
	QuestionID string `json:"question_id"`
	Pinned     bool   `json:"pinned"`
}

type CommentPosted struct {
	Scope     string `json:"scope"`
	SubjectID string `json:"subject_id"`
	CommentID string `json:"comment_id"`
}

type LectureImported struct {
	LectureID string `json:"lecture_id"`
	Questions int    `json:"questions"`
}

type subscriber struct {
	ch     chan Event
	filter func(Event) bool
}

// Bus fans events out to subscribers. Publish is safe from any goroutine.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	nextID  int
	closed  bool
	dropped atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a listener. The returned cancel func must be called to
// release the subscription; the channel closes when it is. A nil filter
// receives everything.
func (b *Bus) Subscribe(buffer int, filter func(Event) bool) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Event, buffer), filter: filter}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish stamps and delivers the event. Full subscriber buffers drop it.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were lost to full buffers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close tears the bus down; every subscriber channel closes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// ForUser keeps events addressed to one user (or broadcast with no user).
func ForUser(userID string) func(Event) bool {
	return func(e Event) bool { return e.UserID == "" || e.UserID == userID }
}
