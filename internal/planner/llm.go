package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/llm"
)

// maxNotes bounds the reasoning carried from one tick's reply into the next prompt.
const maxNotes = 600

// ErrNoJSON is returned when a reply has no trailing JSON object.
var ErrNoJSON = errors.New("reply has no trailing JSON object")

// Completer is the part of the llm client the planner needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// LLM plans by prompting a language model with the exported state. A reply
// that does not parse is re-prompted once.
type LLM struct {
	client      Completer
	strategy    Strategy
	MaxTokens   int
	Temperature float64

	notes      string
	transcript []llm.Message
}

// NewLLM creates a language-model planner.
func NewLLM(client Completer, strategy Strategy) *LLM {
	maxTokens := 500
	if strategy == StrategyPlanExecute {
		maxTokens = 600
	}
	return &LLM{
		client:      client,
		strategy:    strategy,
		MaxTokens:   maxTokens,
		Temperature: 0.2,
	}
}

// Transcript returns the conversation of the most recent Plan call, including
// the system prompt as the first message.
func (p *LLM) Transcript() []llm.Message {
	return p.transcript
}

// Plan implements engine.Planner. Every model call counts as a tool call; every
// reply that fails to parse counts as invalid JSON, and the retry as a replan.
// An API error ends planning for the tick and is returned with the counters so far.
func (p *LLM) Plan(ctx context.Context, st engine.State) (engine.Plan, error) {
	var plan engine.Plan

	contextJSON, err := json.Marshal(st)
	if err != nil {
		return plan, fmt.Errorf("encode state: %w", err)
	}

	system := systemPrompt(p.strategy)
	msgs := []llm.Message{{Role: "user", Content: userPrompt(p.strategy, string(contextJSON), p.notes)}}
	p.transcript = []llm.Message{{Role: "system", Content: system}, msgs[0]}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			plan.Replans++
			msgs = append(msgs, llm.Message{Role: "user", Content: repairPrompt})
			p.transcript = append(p.transcript, msgs[len(msgs)-1])
		}

		reply, err := p.client.Complete(ctx, llm.Request{
			System:      system,
			Messages:    msgs,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
		})
		plan.ToolCalls++
		if err != nil {
			return plan, fmt.Errorf("tick %d: %w", st.Tick+1, err)
		}
		msgs = append(msgs, llm.Message{Role: "assistant", Content: reply})
		p.transcript = append(p.transcript, msgs[len(msgs)-1])

		cmds, dropped, err := parseReply(reply)
		if err != nil {
			plan.InvalidJSON++
			slog.Debug("planner reply rejected", "tick", st.Tick+1, "attempt", attempt+1, "error", err)
			continue
		}
		if dropped > 0 {
			slog.Debug("planner commands dropped", "tick", st.Tick+1, "dropped", dropped)
		}
		plan.Commands = cmds
		p.notes = reasoning(reply)
		return plan, nil
	}

	slog.Warn("planner gave no usable plan", "tick", st.Tick+1, "strategy", p.strategy)
	return plan, nil
}

func parseReply(reply string) ([]agents.Command, int, error) {
	candidate, err := ExtractJSON(reply)
	if err != nil {
		return nil, 0, err
	}
	return agents.ParseCommands([]byte(candidate))
}

// ExtractJSON returns the JSON object the reply ends with. Code fences around it
// are ignored. The longest valid object running to the end of the reply wins.
func ExtractJSON(reply string) (string, error) {
	text := strings.TrimSpace(reply)
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if !strings.HasSuffix(text, "}") {
		return "", ErrNoJSON
	}
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if candidate := text[i:]; json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	return "", ErrNoJSON
}

// reasoning is the text before the final JSON, trimmed for reuse as notes.
func reasoning(reply string) string {
	candidate, err := ExtractJSON(reply)
	if err != nil {
		return ""
	}
	i := strings.LastIndex(reply, candidate)
	if i < 0 {
		return ""
	}
	notes := strings.TrimSpace(reply[:i])
	notes = strings.TrimSpace(strings.TrimSuffix(notes, "```json"))
	notes = strings.TrimSpace(strings.TrimSuffix(notes, "FINAL_JSON:"))
	if len(notes) > maxNotes {
		notes = notes[len(notes)-maxNotes:]
	}
	return notes
}
