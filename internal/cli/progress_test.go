package cli

import (
	"context"
	"errors"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func TestProgressModel(t *testing.T) {
	cancelled := false
	m := newProgressModel("Embedding chunks", 10, func() { cancelled = true })

	next, _ := m.Update(progressMsg{done: 6, total: 10})
	m = next.(progressModel)
	next, _ = m.Update(progressMsg{done: 4, total: 10})
	m = next.(progressModel)
	assert.Equal(t, 6, m.done)
	assert.Contains(t, m.renderContent(), "6/10")

	next, cmd := m.Update(doneMsg{})
	m = next.(progressModel)
	assert.NotNil(t, cmd)
	assert.True(t, m.finished)
	assert.Equal(t, 10, m.done)
	assert.Contains(t, m.renderContent(), "10/10")
	assert.False(t, cancelled)
}

func TestProgressModel_Failure(t *testing.T) {
	m := newProgressModel("Embedding chunks", 4, func() {})
	next, _ := m.Update(doneMsg{err: errors.New("ollama unreachable")})
	assert.Contains(t, next.(progressModel).renderContent(), "ollama unreachable")
}

func TestProgressModel_Cancel(t *testing.T) {
	cancelled := false
	m := newProgressModel("Embedding chunks", 4, func() { cancelled = true })
	next, _ := m.Update(tea.KeyPressMsg{Code: 'q', Text: "q"})
	assert.True(t, cancelled)
	assert.True(t, next.(progressModel).quitting)
}

func TestRunWithProgress_NoTerminal(t *testing.T) {
	// go test does not attach stdout to a terminal
	called := false
	err := runWithProgress(context.Background(), "x", 1, func(ctx context.Context, onProgress func(int, int)) error {
		called = true
		assert.Nil(t, onProgress)
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}
