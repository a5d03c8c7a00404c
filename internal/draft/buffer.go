package draft

import (
	"maps"
	"sync"

	"github.com/sakif/poetry-studio/internal/model"
)

// Buffer holds the editor's current values. The autosave goroutine reads it
// while the user keeps editing, so every access is locked.
type Buffer struct {
	mu      sync.RWMutex
	title   string
	content string
	aux     map[string]string
}

func NewBuffer() *Buffer {
	return &Buffer{aux: make(map[string]string)}
}

func (b *Buffer) SetTitle(title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.title = title
}

func (b *Buffer) SetContent(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.content = content
}

// SetAux records display metadata such as the chosen color token.
// An empty value removes the key.
func (b *Buffer) SetAux(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if value == "" {
		delete(b.aux, key)
		return
	}
	b.aux[key] = value
}

// Load replaces the buffer with a restored snapshot.
func (b *Buffer) Load(snap model.DraftSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.title = snap.Title
	b.content = snap.Content
	b.aux = make(map[string]string, len(snap.Aux))
	maps.Copy(b.aux, snap.Aux)
}

// Reset empties the buffer after a successful submission.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.title = ""
	b.content = ""
	b.aux = make(map[string]string)
}

// Fields returns a copy of the current values.
func (b *Buffer) Fields() Fields {
	b.mu.RLock()
	defer b.mu.RUnlock()

	f := Fields{Title: b.title, Content: b.content}
	if len(b.aux) > 0 {
		f.Aux = maps.Clone(b.aux)
	}
	return f
}
