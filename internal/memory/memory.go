// Package memory keeps the bounded dialogue history of one conversation.
package memory

import (
	"fmt"
	"slices"
	"strings"

	"github.com/raphaelgruber/ragbot/internal/models"
)

// Window holds the most recent WindowSize exchanges (2*WindowSize turns).
// Oldest turns are evicted first. A Window belongs to a single session and
// is not safe for concurrent use.
type Window struct {
	size  int
	turns []models.Turn
	next  int64
}

// New creates an empty window that keeps windowSize exchanges.
func New(windowSize int) (*Window, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("%w: memory window must be at least 1, got %d", models.ErrConfiguration, windowSize)
	}
	return &Window{
		size:  windowSize,
		turns: make([]models.Turn, 0, 2*windowSize),
	}, nil
}

// Size returns the configured number of exchanges.
func (w *Window) Size() int {
	return w.size
}

// Append records a turn, stamping it with the next ordinal, and evicts the
// oldest turns until at most 2*Size remain.
func (w *Window) Append(role models.Role, text string) models.Turn {
	t := models.Turn{Role: role, Text: text, Ordinal: w.next}
	w.next++
	w.turns = append(w.turns, t)
	if over := len(w.turns) - 2*w.size; over > 0 {
		w.turns = slices.Delete(w.turns, 0, over)
	}
	return t
}

// AppendExchange records a user turn followed by the assistant reply.
func (w *Window) AppendExchange(query, answer string) {
	w.Append(models.RoleUser, query)
	w.Append(models.RoleAssistant, answer)
}

// Len returns the number of stored turns.
func (w *Window) Len() int {
	return len(w.turns)
}

// Turns returns a copy of the stored turns, oldest first.
func (w *Window) Turns() []models.Turn {
	return slices.Clone(w.turns)
}

// Render produces the chronological transcript used as the prompt's history,
// one "User: ..." or "Assistant: ..." line per turn. Empty memory renders as "".
func (w *Window) Render() string {
	var sb strings.Builder
	for i, t := range w.turns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(t.Role.Label())
		sb.WriteString(": ")
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// Reset drops all turns. Ordinals keep increasing.
func (w *Window) Reset() {
	w.turns = w.turns[:0]
}
