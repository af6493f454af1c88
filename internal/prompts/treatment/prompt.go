package treatment

import (
	_ "embed"

	"github.com/hemapex/hemapex/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

// SystemPromptKey identifies the treatment-line instruction.
const SystemPromptKey = "extract.treatment.system"

// RegisterPrompts registers the treatment prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Treatment line extraction system prompt - lists oncologic treatment lines with canonical dates",
	})
}
