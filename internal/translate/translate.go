// Package translate renders release notes in a second language through an
// LLM provider chosen by the model identifier.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable is returned when no provider is configured or there is nothing to translate
var ErrUnavailable = errors.New("translator unavailable")

// Translator translates release notes
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Config selects and configures a provider.
// Model is "openrouter/<model>" or "gemini/<model>".
type Config struct {
	Model   string
	APIKey  string
	Timeout time.Duration
}

// New returns the provider for cfg.Model, or a disabled translator when no key is set
func New(ctx context.Context, cfg Config) (Translator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Disabled{}, nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	provider, model, ok := strings.Cut(cfg.Model, "/")
	if !ok || model == "" {
		return nil, fmt.Errorf("invalid model %q: want provider/model", cfg.Model)
	}

	switch strings.ToLower(provider) {
	case "openrouter":
		return NewOpenRouter(cfg.APIKey, model, cfg.Timeout), nil
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown translation provider %q", provider)
	}
}

// Disabled always reports ErrUnavailable
type Disabled struct{}

// Translate implements Translator
func (Disabled) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return "", ErrUnavailable
}

// keepTerms stay untranslated in every language
var keepTerms = []string{
	"API", "SDK", "CLI", "Token", "Context Window", "OAuth", "WebSocket", "Streaming", "LLM", "Prompt",
	"Agent", "Subagent", "Skill", "Hook", "Plugin", "Plan Mode", "Compact Mode", "Background Task",
	"Memory", "TUI", "Sandbox", "Transcript Mode",
	"/compact", "/context", "/permissions", "/mcp", "/model", "/resume", "/export", "/init",
	"MCP", "Model Context Protocol", "Tool Use", "Tool Call", "Permission", "Thinking Block",
	"exec_command", "apply_patch", "prompt cache", "reasoning effort",
	"settings.json", "CLAUDE.md", "config.toml", "AGENTS.md", ".mcp.json",
}

// buildPrompt creates the translation prompt
func buildPrompt(text, sourceLang, targetLang string) string {
	return fmt.Sprintf(`Translate the following %s software release notes into %s. Output only the translation, without explanations or a preface.

Rules:
1. Keep the Markdown structure unchanged (headings, lists, code blocks).
2. Keep version numbers, code snippets and commands as they are.
3. Keep these terms in their original form: %s.
4. Write fluent, natural technical prose.
5. When unsure about a proper noun, keep the original.

Release notes:
%s`, sourceLang, targetLang, strings.Join(keepTerms, ", "), text)
}

func validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrUnavailable
	}
	return nil
}
