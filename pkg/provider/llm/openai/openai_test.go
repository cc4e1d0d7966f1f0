package openai

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/rehearsal/pkg/provider/llm"
)

// TestConvertMessage_System checks that system role is converted correctly.
func TestConvertMessage_System(t *testing.T) {
	got, err := convertMessage(llm.Message{Role: "system", Content: "You are Dr.LiveCoach."})
	if err != nil {
		t.Fatalf("convertMessage: %v", err)
	}
	if got.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}
}

// TestConvertMessage_User checks that user role is converted correctly.
func TestConvertMessage_User(t *testing.T) {
	got, err := convertMessage(llm.Message{Role: "user", Content: "Hello!"})
	if err != nil {
		t.Fatalf("convertMessage: %v", err)
	}
	if got.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}
}

// TestConvertMessage_Assistant checks that assistant role is converted.
func TestConvertMessage_Assistant(t *testing.T) {
	got, err := convertMessage(llm.Message{Role: "assistant", Content: "Hi there!", Name: "coach"})
	if err != nil {
		t.Fatalf("convertMessage: %v", err)
	}
	if got.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
	if got.OfAssistant.Name.Value != "coach" {
		t.Errorf("expected name coach, got %q", got.OfAssistant.Name.Value)
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	_, err := convertMessage(llm.Message{Role: "narrator", Content: "Meanwhile..."})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if !strings.Contains(err.Error(), "narrator") {
		t.Errorf("expected error to name the role, got: %v", err)
	}
}

// TestModelCapabilities_GPT4oMini checks gpt-4o-mini capabilities.
func TestModelCapabilities_GPT4oMini(t *testing.T) {
	caps := modelCapabilities("gpt-4o-mini")
	if caps.ContextWindow != 128_000 {
		t.Errorf("gpt-4o-mini: expected context window 128000, got %d", caps.ContextWindow)
	}
	if caps.MaxOutputTokens != 16_384 {
		t.Errorf("gpt-4o-mini: expected MaxOutputTokens 16384, got %d", caps.MaxOutputTokens)
	}
	if !caps.SupportsStreaming {
		t.Error("gpt-4o-mini: expected SupportsStreaming=true")
	}
}

// TestModelCapabilities_GPT4 checks gpt-4 capabilities.
func TestModelCapabilities_GPT4(t *testing.T) {
	caps := modelCapabilities("gpt-4")
	if caps.ContextWindow != 8_192 {
		t.Errorf("gpt-4: expected context window 8192, got %d", caps.ContextWindow)
	}
}

// TestModelCapabilities_UnknownModel checks defaults for unrecognised models.
func TestModelCapabilities_UnknownModel(t *testing.T) {
	caps := modelCapabilities("some-future-model")
	if caps.ContextWindow != 128_000 {
		t.Errorf("unknown model: expected context window 128000, got %d", caps.ContextWindow)
	}
	if caps.MaxOutputTokens != 4_096 {
		t.Errorf("unknown model: expected MaxOutputTokens 4096, got %d", caps.MaxOutputTokens)
	}
}

// TestCountTokens_Estimation checks that token counting returns a reasonable value.
func TestCountTokens_Estimation(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	messages := []llm.Message{
		{Role: "user", Content: "This is a message that is about forty characters."},
	}
	count, err := p.CountTokens(messages)
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if count < 10 || count > 25 {
		t.Errorf("expected count between 10 and 25, got %d", count)
	}
}

// TestNew_MissingAPIKey ensures constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// TestNew_MissingModel ensures constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Options checks that optional settings are accepted without error.
func TestNew_Options(t *testing.T) {
	p, err := New("sk-test", "gpt-4o",
		WithBaseURL("http://localhost:8080/v1"),
		WithOrganization("org-test"),
		WithTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}
