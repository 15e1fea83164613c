package token

import (
	"unicode/utf8"

	"github.com/akolanti/DigestAPI/internal/config"
)

// Manager estimates token cost without a provider tokenizer. The estimate is
// a safety margin: it rounds up, because undercounting risks a truncated or
// rejected request upstream.
type Manager struct {
	charsPerToken int
	budget        int
}

func NewManager(charsPerToken int, budget int) *Manager {
	if charsPerToken <= 0 {
		charsPerToken = config.CharsPerToken
	}
	return &Manager{charsPerToken: charsPerToken, budget: budget}
}

func DefaultManager() *Manager {
	return NewManager(config.CharsPerToken, config.ModelTokenBudget)
}

// Estimate is monotonic with text length: more runes never estimate fewer
// tokens.
func (m *Manager) Estimate(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	return (runes + m.charsPerToken - 1) / m.charsPerToken
}

func (m *Manager) Fits(tokenCount int, budget int) bool {
	return tokenCount <= budget
}

// Budget is the configured ceiling, fixed at deployment rather than
// negotiated per provider.
func (m *Manager) Budget() int {
	return m.budget
}

// RunesForTokens inverts the estimate: a string of this many runes estimates
// to at most n tokens.
func (m *Manager) RunesForTokens(n int) int {
	return n * m.charsPerToken
}
