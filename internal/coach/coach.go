// Package coach produces text replies and post-session evaluations for
// role-play sessions using an LLM backend.
//
// A Coach with a nil provider runs in demo mode: replies and evaluations
// are canned so the rest of the application stays usable without an API key.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/rehearsal/internal/observe"
	"github.com/MrWong99/rehearsal/internal/scenario"
	"github.com/MrWong99/rehearsal/pkg/provider/llm"
	"github.com/MrWong99/rehearsal/pkg/transcript"
)

const (
	// replyTemperature balances consistent persona behavior against variety.
	replyTemperature = 0.7

	// replyMaxTokens keeps chat replies short, matching a real conversation pace.
	replyMaxTokens = 300

	demoReply = "(Demo Mode: API Key missing) That sounds interesting. Tell me more about how that impacts your daily work?"

	emptyReply = "I'm having trouble thinking right now."
)

// Metric is one scored evaluation axis.
type Metric struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	FullMark float64 `json:"fullMark"`
}

// Evaluation is the structured assessment of the user's performance in a
// completed session.
type Evaluation struct {
	Metrics            []Metric `json:"metrics"`
	Strengths          []string `json:"strengths"`
	Improvements       []string `json:"improvements"`
	RecommendedActions []string `json:"recommendedActions"`
	Summary            string   `json:"summary"`
}

// Coach generates persona replies and session evaluations.
// Safe for concurrent use when the underlying provider is.
type Coach struct {
	provider llm.Provider // nil enables demo mode
	log      *slog.Logger
	metrics  *observe.Metrics
}

// Option configures a Coach.
type Option func(*Coach)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Coach) {
		c.log = log
	}
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coach) {
		c.metrics = m
	}
}

// New creates a Coach. A nil provider is allowed and enables demo mode.
func New(provider llm.Provider, opts ...Option) *Coach {
	c := &Coach{provider: provider}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// DemoMode reports whether the Coach runs without an LLM backend.
func (c *Coach) DemoMode() bool { return c.provider == nil }

// Reply generates the AI side's next chat message for the given scenario
// and conversation history. The history must be ordered oldest first.
func (c *Coach) Reply(ctx context.Context, sc scenario.Scenario, history []transcript.Entry) (string, error) {
	if c.provider == nil {
		return demoReply, nil
	}

	messages := make([]llm.Message, 0, len(history))
	for _, e := range history {
		role := "user"
		if e.Role == transcript.RoleModel {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: e.Text})
	}
	if len(messages) == 0 {
		return "", errors.New("coach: empty conversation history")
	}
	messages = c.trimHistory(messages)

	start := time.Now()
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Messages:     messages,
		SystemPrompt: sc.ChatInstructions(),
		Temperature:  replyTemperature,
		MaxTokens:    replyMaxTokens,
	})
	c.metrics.ReplyDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("coach: generate reply: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return emptyReply, nil
	}
	return text, nil
}

// Evaluate scores the user's performance across a finished session.
//
// Evaluation never fails hard: when the backend errors or returns malformed
// JSON, a canned result is returned so the session can always be closed out.
func (c *Coach) Evaluate(ctx context.Context, sc scenario.Scenario, history []transcript.Entry) *Evaluation {
	if c.provider == nil {
		return fallbackEvaluation(sc.UserRole)
	}

	start := time.Now()
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: evaluationPrompt(sc)},
			{Role: "user", Content: "Transcript:\n" + formatConversation(history)},
		},
	})
	c.metrics.EvalDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.log.Warn("evaluation request failed, using canned result", "error", err)
		return fallbackEvaluation(sc.UserRole)
	}

	eval, err := parseEvaluation(resp.Content)
	if err != nil {
		c.log.Warn("evaluation response unparseable, using canned result", "error", err)
		return fallbackEvaluation(sc.UserRole)
	}
	return eval
}

// questioningCriterion names the role-dependent third evaluation axis.
func questioningCriterion(role scenario.Role) string {
	if role == scenario.RoleCoach {
		return "Powerful Questioning"
	}
	return "Self-Reflection"
}

// evaluationPrompt builds the analysis instruction for the given scenario.
func evaluationPrompt(sc scenario.Scenario) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following coaching conversation transcript.\n")
	fmt.Fprintf(&b, "The User played the role of: %s.\n", sc.UserRole)
	fmt.Fprintf(&b, "The Scenario was: %s.\n", sc.Persona.Topic)
	fmt.Fprintf(&b, "The Model used (if applicable) was: %s.\n", sc.Framework)
	fmt.Fprintf(&b, "Language: %s.\n\n", sc.Language)
	fmt.Fprintf(&b, "Evaluate the USER's performance based on:\n")
	fmt.Fprintf(&b, "1. Empathy & Rapport\n")
	fmt.Fprintf(&b, "2. Active Listening\n")
	fmt.Fprintf(&b, "3. %s\n", questioningCriterion(sc.UserRole))
	fmt.Fprintf(&b, "4. Goal Orientation\n")
	fmt.Fprintf(&b, "5. Professionalism\n\n")
	fmt.Fprintf(&b, "Provide scores (0-10), list strengths, areas for improvement, and recommended actions.\n")
	fmt.Fprintf(&b, "Also provide a short summary paragraph.\n\n")
	fmt.Fprintf(&b, "Respond with ONLY a JSON object of the shape:\n")
	fmt.Fprintf(&b, `{"metrics":[{"category":"...","score":0,"fullMark":10}],"strengths":["..."],"improvements":["..."],"recommendedActions":["..."],"summary":"..."}`)
	fmt.Fprintf(&b, "\n\nIMPORTANT: The output text (summary, strengths, etc.) MUST be in %s language.\n", sc.Language)
	return b.String()
}

// formatConversation renders the history as "ROLE: text" lines.
func formatConversation(history []transcript.Entry) string {
	lines := make([]string, 0, len(history))
	for _, e := range history {
		lines = append(lines, strings.ToUpper(string(e.Role))+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}

// parseEvaluation extracts an Evaluation from a model response, tolerating
// surrounding prose and Markdown code fences.
func parseEvaluation(raw string) (*Evaluation, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errors.New("coach: no JSON object in response")
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(raw[start:end+1]), &eval); err != nil {
		return nil, fmt.Errorf("coach: decode evaluation: %w", err)
	}
	if len(eval.Metrics) == 0 {
		return nil, errors.New("coach: evaluation has no metrics")
	}
	return &eval, nil
}

// fallbackEvaluation returns the canned evaluation used in demo mode and
// when the backend cannot produce a usable result.
func fallbackEvaluation(role scenario.Role) *Evaluation {
	return &Evaluation{
		Metrics: []Metric{
			{Category: "Empathy & Rapport", Score: 7, FullMark: 10},
			{Category: "Active Listening", Score: 8, FullMark: 10},
			{Category: questioningCriterion(role), Score: 6, FullMark: 10},
			{Category: "Goal Orientation", Score: 9, FullMark: 10},
			{Category: "Professionalism", Score: 10, FullMark: 10},
		},
		Strengths: []string{
			"Maintained a professional tone throughout the session.",
			"Good use of open-ended questions to clarify the situation.",
		},
		Improvements: []string{
			"Could demonstrate more empathy towards the user's frustration.",
			"Moved to solutions a bit too quickly before fully exploring the reality.",
		},
		RecommendedActions: []string{
			"Practice reflective listening techniques.",
			"Spend more time in the 'Reality' phase of the GROW model.",
		},
		Summary: "A solid coaching session. You demonstrated good structure but could improve on building deeper rapport initially.",
	}
}
