package coach

import (
	"github.com/MrWong99/rehearsal/pkg/provider/llm"
)

const (
	// historyBudgetRatio is the share of the model's context window allotted
	// to conversation history. The remainder is reserved for the system
	// prompt and the reply.
	historyBudgetRatio = 0.75

	// defaultContextWindow is assumed when the provider does not report one.
	defaultContextWindow = 32768
)

// trimHistory drops the oldest messages until the remainder fits the token
// budget. Whole halves are dropped at a time so long sessions converge in a
// few counting round-trips. The most recent message is always kept.
//
// When token counting fails the history is sent unchanged; the backend will
// reject an oversized request itself.
func (c *Coach) trimHistory(messages []llm.Message) []llm.Message {
	window := c.provider.Capabilities().ContextWindow
	if window <= 0 {
		window = defaultContextWindow
	}
	budget := int(float64(window) * historyBudgetRatio)

	for len(messages) > 1 {
		tokens, err := c.provider.CountTokens(messages)
		if err != nil {
			c.log.Warn("token count failed, sending full history", "error", err)
			return messages
		}
		if tokens <= budget {
			return messages
		}
		drop := len(messages) / 2
		c.log.Debug("conversation history over token budget, dropping oldest messages",
			"tokens", tokens,
			"budget", budget,
			"dropped", drop,
		)
		messages = messages[drop:]
	}
	return messages
}
