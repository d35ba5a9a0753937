package ido

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedConfirmer answers prompts from a fixed list, in order. It backs the
// --answer flag and the tests.
type ScriptedConfirmer struct {
	mu      sync.Mutex
	answers []string
	prompts []string
}

// NewScriptedConfirmer returns a Confirmer that replies with answers in order.
func NewScriptedConfirmer(answers ...string) *ScriptedConfirmer {
	return &ScriptedConfirmer{answers: answers}
}

// Ask records prompt and returns the next scripted answer.
func (s *ScriptedConfirmer) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.answers) == 0 {
		return "", fmt.Errorf("no scripted answer left for prompt %q", prompt)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

// Prompts returns every prompt asked so far.
func (s *ScriptedConfirmer) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
