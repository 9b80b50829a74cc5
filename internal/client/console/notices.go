package console

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/client/services"
)

// Notice is a message the operator has to see once, such as the idle
// warning or the reason a session ended.
type Notice struct {
	Kind    string    `json:"kind"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const (
	NoticeIdleWarning  = "idle_warning"
	NoticeSessionEnded = "session_ended"
)

// NoticeBoard keeps the latest notice until it is read. It implements
// services.Notifier.
type NoticeBoard struct {
	mu     sync.Mutex
	now    func() time.Time
	latest *Notice
}

func NewNoticeBoard(now func() time.Time) *NoticeBoard {
	if now == nil {
		now = time.Now
	}
	return &NoticeBoard{now: now}
}

func (b *NoticeBoard) IdleWarning(remaining time.Duration) {
	b.post(Notice{
		Kind:    NoticeIdleWarning,
		Message: "You will be signed out in " + remaining.Round(time.Second).String() + " due to inactivity.",
	})
}

func (b *NoticeBoard) SessionEnded(reason services.EndReason, message string) {
	b.post(Notice{Kind: NoticeSessionEnded, Reason: string(reason), Message: message})
}

func (b *NoticeBoard) post(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n.At = b.now()
	// a session-ended notice outranks a pending warning
	if b.latest != nil && b.latest.Kind == NoticeSessionEnded && n.Kind == NoticeIdleWarning {
		return
	}
	b.latest = &n
}

// Take returns the pending notice and forgets it.
func (b *NoticeBoard) Take() *Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.latest
	b.latest = nil
	return n
}
