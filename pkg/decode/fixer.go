package decode

import (
	"context"
	_ "embed"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/adapter"
	"google.golang.org/genai"
)

//go:embed prompt/fixjson.md
var fixJSONPromptRaw string

// GeminiFixer implements Fixer with a dedicated repair completion
type GeminiFixer struct {
	gemini adapter.Gemini
}

// NewGeminiFixer creates a Fixer backed by the Gemini adapter
func NewGeminiFixer(gemini adapter.Gemini) *GeminiFixer {
	return &GeminiFixer{gemini: gemini}
}

func (f *GeminiFixer) FixJSON(ctx context.Context, raw string) (string, error) {
	temperature := float32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(fixJSONPromptRaw, ""),
		Temperature:       &temperature,
	}

	contents := []*genai.Content{
		genai.NewContentFromText(raw, genai.RoleUser),
	}

	fixed, err := f.gemini.GenerateText(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to repair JSON via LLM")
	}

	return fixed, nil
}
