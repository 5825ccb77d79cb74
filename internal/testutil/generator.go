package testutil

import (
	"context"
	"sync"
)

// ScriptedGenerator is a plan generator that replies with canned outputs in
// order and records every prompt. The last reply repeats once the script
// runs out.
//
// Thread-safety: ScriptedGenerator is safe for concurrent use via internal mutex.
type ScriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

// NewScriptedGenerator creates a generator replying with replies in order.
func NewScriptedGenerator(replies ...string) *ScriptedGenerator {
	return &ScriptedGenerator{replies: replies}
}

// NewFailingGenerator creates a generator whose every call returns err.
func NewFailingGenerator(err error) *ScriptedGenerator {
	return &ScriptedGenerator{err: err}
}

// Generate records the prompt and returns the next reply.
func (g *ScriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "", nil
	}
	i := len(g.prompts) - 1
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	return g.replies[i], nil
}

// Prompts returns the recorded prompts in call order.
func (g *ScriptedGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.prompts))
	copy(out, g.prompts)
	return out
}
