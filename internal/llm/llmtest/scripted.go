// internal/llm/llmtest/scripted.go
package llmtest

import (
	"context"
	"strings"
	"sync"

	"mcp-pantry-assistant/internal/llm"
)

// Rule answers any request whose system or user prompt contains Match.
type Rule struct {
	Match string
	Text  string
	Err   error
	Panic bool
}

// ScriptedCaller is a deterministic llm.Caller for tests. Rules are checked in
// order; unmatched requests get Default.
type ScriptedCaller struct {
	Rules   []Rule
	Default string

	mu    sync.Mutex
	calls []llm.Request
}

func New(rules ...Rule) *ScriptedCaller {
	return &ScriptedCaller{Rules: rules}
}

func (s *ScriptedCaller) CallModel(_ context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	for _, rule := range s.Rules {
		if !strings.Contains(req.SystemPrompt, rule.Match) && !strings.Contains(req.UserPrompt, rule.Match) {
			continue
		}
		if rule.Panic {
			panic("scripted panic: " + rule.Match)
		}
		if rule.Err != nil {
			return llm.Response{}, rule.Err
		}
		return llm.Response{Text: rule.Text}, nil
	}
	return llm.Response{Text: s.Default}, nil
}

func (s *ScriptedCaller) Calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.calls...)
}

// CallsMatching counts recorded requests whose prompts contain match.
func (s *ScriptedCaller) CallsMatching(match string) int {
	n := 0
	for _, req := range s.Calls() {
		if strings.Contains(req.SystemPrompt, match) || strings.Contains(req.UserPrompt, match) {
			n++
		}
	}
	return n
}
