package mock

import (
	"context"
	"sync"
)

// Answerer is a test double for ai.Answerer.
type Answerer struct {
	// AnswerFunc is called by Answer if set. If nil, a canned payload is
	// returned.
	AnswerFunc func(ctx context.Context, question string) ([]byte, error)

	mu        sync.Mutex
	questions []string
}

// NewAnswerer creates a mock answerer returning a fixed payload.
func NewAnswerer() *Answerer {
	return &Answerer{}
}

// Answer records the question and returns the configured payload.
func (m *Answerer) Answer(ctx context.Context, question string) ([]byte, error) {
	m.mu.Lock()
	m.questions = append(m.questions, question)
	m.mu.Unlock()

	if m.AnswerFunc != nil {
		return m.AnswerFunc(ctx, question)
	}

	return []byte(`{"answer":"mock answer","sources":[{"url":"","title":"mock.txt"}]}`), nil
}

// Questions returns the questions asked so far.
func (m *Answerer) Questions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.questions...)
}
