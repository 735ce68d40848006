// Package notice holds the short-lived status message shown to the user.
package notice

import (
	"fmt"
	"sync"
	"time"
)

// Lifetime is how long a notice stays visible after posted.
const Lifetime = 5 * time.Second

type Severity int

const (
	Info Severity = iota
	Success
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Success:
		return "SUCCESS"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("unknown severity (%d)", int(s))
	}
}

type Notice struct {
	Text     string
	Severity Severity
	Posted   time.Time
}

func (n Notice) ExpiresAt() time.Time {
	return n.Posted.Add(Lifetime)
}

// VisibleAt tells the notice is visible at t.
func (n Notice) VisibleAt(t time.Time) bool {
	return !t.Before(n.Posted) && t.Before(n.ExpiresAt())
}

func (n Notice) String() string {
	return fmt.Sprintf("[%s] %s", n.Severity, n.Text)
}

// Board keeps the latest notice. Posting a notice replaces the previous one.
type Board struct {
	now func() time.Time

	m         sync.Mutex
	current   *Notice
	listeners []func(Notice)
}

type Option func(*Board) *Board

// WithClock replaces the clock, which is time.Now by default.
func WithClock(now func() time.Time) Option {
	return func(b *Board) *Board {
		b.now = now
		return b
	}
}

func NewBoard(options ...Option) *Board {
	b := &Board{now: time.Now}
	for _, o := range options {
		b = o(b)
	}
	return b
}

// Subscribe registers a function called with each posted notice.
func (b *Board) Subscribe(f func(Notice)) {
	b.m.Lock()
	defer b.m.Unlock()
	b.listeners = append(b.listeners, f)
}

func (b *Board) Post(severity Severity, text string) Notice {
	n := Notice{Text: text, Severity: severity, Posted: b.now()}

	b.m.Lock()
	b.current = &n
	listeners := b.listeners
	b.m.Unlock()

	for _, l := range listeners {
		l(n)
	}
	return n
}

func (b *Board) Info(text string) Notice {
	return b.Post(Info, text)
}

func (b *Board) Success(text string) Notice {
	return b.Post(Success, text)
}

func (b *Board) Error(text string) Notice {
	return b.Post(Error, text)
}

// Visible returns the notice if it is not expired.
func (b *Board) Visible() (Notice, bool) {
	b.m.Lock()
	defer b.m.Unlock()
	if b.current == nil || !b.current.VisibleAt(b.now()) {
		return Notice{}, false
	}
	return *b.current, true
}

// Clear hides the current notice.
func (b *Board) Clear() {
	b.m.Lock()
	defer b.m.Unlock()
	b.current = nil
}
