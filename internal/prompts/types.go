// Package prompts provides system instructions with embedded defaults and
// file overrides.
//
// Embedded .tmpl files in code are the source of truth for defaults. A
// configured override file replaces the default for one key, which lets a
// study iterate on instructions without rebuilding.
//
// Resolution order for a key:
//  1. Override file (if configured and readable)
//  2. Embedded default
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string // Hierarchical key: extract.treatment.system
	Text        string // The prompt text
	Description string // Human-readable description
	Hash        string // SHA256 hash of the text for change detection
}

// ResolvedPrompt is the result of resolving a prompt key.
type ResolvedPrompt struct {
	Key        string `json:"key"`
	Text       string `json:"text"`
	IsOverride bool   `json:"is_override"`
	Source     string `json:"source"` // override path or "embedded"
	Hash       string `json:"hash"`
}
