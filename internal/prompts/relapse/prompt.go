package relapse

import (
	_ "embed"

	"github.com/hemapex/hemapex/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

// SystemPromptKey identifies the relapse instruction.
const SystemPromptKey = "extract.relapse.system"

// RegisterPrompts registers the relapse prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Post-transplant relapse system prompt",
	})
}
