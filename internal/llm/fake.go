package llm

import (
	"context"
	"sync"
)

// Scripted is an in-memory Client that replays fixed replies. It backs tests and
// the prompttest binary's dry-run mode.
type Scripted struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Prompts []string
}

func (s *Scripted) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Replies) == 0 {
		return "", ErrEmptyReply
	}
	reply := s.Replies[0]
	if len(s.Replies) > 1 {
		s.Replies = s.Replies[1:]
	}
	return reply, nil
}

// Calls returns how many prompts were received.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}
