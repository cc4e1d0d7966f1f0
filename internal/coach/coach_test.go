package coach_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/rehearsal/internal/coach"
	"github.com/MrWong99/rehearsal/internal/scenario"
	"github.com/MrWong99/rehearsal/pkg/provider/llm"
	mockllm "github.com/MrWong99/rehearsal/pkg/provider/llm/mock"
	"github.com/MrWong99/rehearsal/pkg/transcript"
)

func coachScenario() scenario.Scenario {
	return scenario.Scenario{
		UserRole: scenario.RoleCoach,
		Persona: scenario.Persona{
			Gender:     "Female",
			Age:        "34",
			Profession: "Software Engineering",
			Position:   "Team Lead",
			Topic:      "Struggling to delegate work",
		},
		Framework: scenario.FrameworkGROW,
		Language:  scenario.LanguageEN,
		Mode:      scenario.ModeText,
	}
}

func history() []transcript.Entry {
	return []transcript.Entry{
		{Role: transcript.RoleUser, Text: "What would success look like for you?"},
		{Role: transcript.RoleModel, Text: "I guess my team handling releases without me."},
		{Role: transcript.RoleUser, Text: "What stops that from happening today?"},
	}
}

// TestReply_MapsHistoryAndSettings checks the completion request the coach builds.
func TestReply_MapsHistoryAndSettings(t *testing.T) {
	t.Parallel()

	p := &mockllm.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "  I'm afraid things will slip.  "},
	}
	c := coach.New(p)

	got, err := c.Reply(context.Background(), coachScenario(), history())
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got != "I'm afraid things will slip." {
		t.Errorf("unexpected reply: %q", got)
	}

	if len(p.CompleteCalls) != 1 {
		t.Fatalf("expected 1 Complete call, got %d", len(p.CompleteCalls))
	}
	req := p.CompleteCalls[0].Req
	if req.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", req.Temperature)
	}
	if req.MaxTokens != 300 {
		t.Errorf("expected max tokens 300, got %d", req.MaxTokens)
	}
	if !strings.Contains(req.SystemPrompt, "Struggling to delegate work") {
		t.Error("expected system prompt to carry the persona topic")
	}
	if len(req.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != "user" || req.Messages[1].Role != "assistant" || req.Messages[2].Role != "user" {
		t.Errorf("unexpected role mapping: %+v", req.Messages)
	}
}

// TestReply_DemoMode checks the canned reply without a provider.
func TestReply_DemoMode(t *testing.T) {
	t.Parallel()

	c := coach.New(nil)
	if !c.DemoMode() {
		t.Fatal("expected demo mode with nil provider")
	}

	got, err := c.Reply(context.Background(), coachScenario(), history())
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if !strings.Contains(got, "Demo Mode") {
		t.Errorf("expected demo reply, got %q", got)
	}
}

// TestReply_EmptyHistory checks that a reply needs at least one message.
func TestReply_EmptyHistory(t *testing.T) {
	t.Parallel()

	c := coach.New(&mockllm.Provider{})
	if _, err := c.Reply(context.Background(), coachScenario(), nil); err == nil {
		t.Fatal("expected error for empty history")
	}
}

// TestReply_BackendError checks that provider failures surface as errors.
func TestReply_BackendError(t *testing.T) {
	t.Parallel()

	p := &mockllm.Provider{CompleteErr: errors.New("quota exceeded")}
	c := coach.New(p)

	_, err := c.Reply(context.Background(), coachScenario(), history())
	if err == nil {
		t.Fatal("expected error from backend failure")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected wrapped backend error, got: %v", err)
	}
}

// TestReply_EmptyContent checks the placeholder used for blank completions.
func TestReply_EmptyContent(t *testing.T) {
	t.Parallel()

	p := &mockllm.Provider{CompleteResponse: &llm.CompletionResponse{Content: "   "}}
	c := coach.New(p)

	got, err := c.Reply(context.Background(), coachScenario(), history())
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got != "I'm having trouble thinking right now." {
		t.Errorf("unexpected placeholder: %q", got)
	}
}

// TestEvaluate_ParsesJSON checks a well-formed evaluation response.
func TestEvaluate_ParsesJSON(t *testing.T) {
	t.Parallel()

	body := `{"metrics":[{"category":"Empathy & Rapport","score":5,"fullMark":10}],` +
		`"strengths":["Warm opening"],"improvements":["Slow down"],` +
		`"recommendedActions":["Pause before solutions"],"summary":"Decent session."}`
	p := &mockllm.Provider{CompleteResponse: &llm.CompletionResponse{Content: body}}
	c := coach.New(p)

	eval := c.Evaluate(context.Background(), coachScenario(), history())
	if eval.Summary != "Decent session." {
		t.Errorf("unexpected summary: %q", eval.Summary)
	}
	if len(eval.Metrics) != 1 || eval.Metrics[0].Score != 5 {
		t.Errorf("unexpected metrics: %+v", eval.Metrics)
	}

	req := p.CompleteCalls[0].Req
	if !strings.Contains(req.Messages[0].Content, "Powerful Questioning") {
		t.Error("expected coach-role criterion in the prompt")
	}
	if !strings.Contains(req.Messages[1].Content, "USER: What would success look like for you?") {
		t.Error("expected transcript lines in the second message")
	}
}

// TestEvaluate_ToleratesCodeFences checks parsing of fenced JSON output.
func TestEvaluate_ToleratesCodeFences(t *testing.T) {
	t.Parallel()

	body := "```json\n" +
		`{"metrics":[{"category":"Active Listening","score":8,"fullMark":10}],` +
		`"strengths":[],"improvements":[],"recommendedActions":[],"summary":"Fine."}` +
		"\n```"
	p := &mockllm.Provider{CompleteResponse: &llm.CompletionResponse{Content: body}}
	c := coach.New(p)

	eval := c.Evaluate(context.Background(), coachScenario(), history())
	if eval.Summary != "Fine." {
		t.Errorf("unexpected summary: %q", eval.Summary)
	}
}

// TestEvaluate_FallbackOnError checks the canned result on backend failure.
func TestEvaluate_FallbackOnError(t *testing.T) {
	t.Parallel()

	p := &mockllm.Provider{CompleteErr: errors.New("connection reset")}
	c := coach.New(p)

	eval := c.Evaluate(context.Background(), coachScenario(), history())
	if len(eval.Metrics) != 5 {
		t.Fatalf("expected canned 5 metrics, got %d", len(eval.Metrics))
	}
	if eval.Metrics[2].Category != "Powerful Questioning" {
		t.Errorf("expected coach criterion, got %q", eval.Metrics[2].Category)
	}
}

// TestEvaluate_FallbackOnGarbage checks the canned result on unparseable output.
func TestEvaluate_FallbackOnGarbage(t *testing.T) {
	t.Parallel()

	p := &mockllm.Provider{CompleteResponse: &llm.CompletionResponse{Content: "sorry, I cannot help with that"}}
	c := coach.New(p)

	eval := c.Evaluate(context.Background(), coachScenario(), history())
	if len(eval.Metrics) != 5 {
		t.Fatalf("expected canned 5 metrics, got %d", len(eval.Metrics))
	}
}

// TestEvaluate_CoacheeCriterion checks the role-dependent third axis.
func TestEvaluate_CoacheeCriterion(t *testing.T) {
	t.Parallel()

	sc := coachScenario()
	sc.UserRole = scenario.RoleCoachee

	c := coach.New(nil)
	eval := c.Evaluate(context.Background(), sc, history())
	if eval.Metrics[2].Category != "Self-Reflection" {
		t.Errorf("expected Self-Reflection, got %q", eval.Metrics[2].Category)
	}
}
