// Package notify carries user-facing notifications (the toasts of the web editor,
// printed lines in the CLI, flash messages on server-rendered pages).
package notify

import (
	"fmt"
	"io"
	"sync"
)

type Level int

const (
	Info Level = iota
	Error
	// Cancelled is for user-initiated aborts. It is shown without alarm.
	Cancelled
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Error:
		return "error"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

type Notification struct {
	Level   Level
	Title   string
	Message string
}

type Notifier interface {
	Notify(n Notification)
}

// Func adapts a plain function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Recorder keeps notifications in memory until drained.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Drain returns and forgets everything recorded so far.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

// Writer prints one line per notification.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (p *Writer) Notify(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := "•"
	switch n.Level {
	case Error:
		prefix = "✗"
	case Cancelled:
		prefix = "–"
	}
	if n.Message == "" {
		fmt.Fprintf(p.w, "%s %s\n", prefix, n.Title)
		return
	}
	fmt.Fprintf(p.w, "%s %s: %s\n", prefix, n.Title, n.Message)
}
