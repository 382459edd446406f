// Package recipe extracts normalized ingredient names from recipe text or a
// recipe web page and merges them into a grocery list without duplicating
// existing entries.
//
// Normalization (dropping quantities and units, merging near-synonyms,
// skipping pantry staples) is a prompt-level contract interpreted by the
// language model — it is best-effort and not independently verified by code.
// The de-duplication pass, by contrast, is enforced here: see dedupe.go.
package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/echolist/pkg/provider/llm"
)

const defaultTemperature = 0.1

// systemPrompt is the extraction contract sent to the model.
const systemPrompt = `You extract grocery shopping items from recipe text.

Rules:
- Return ingredient NAMES only: strip quantities, units, and preparation notes ("2 cups flour, sifted" becomes "flour").
- Merge near-synonyms into one entry ("scallions" and "green onions" are one item).
- Skip common pantry staples: salt, pepper, water.
- Use short lower-case names the way people write shopping lists.
- Ignore instructions, serving suggestions, and anything that is not an ingredient.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "ingredients": ["<name>", "<name>"],
  "reasoning": "<one sentence on what you extracted or skipped>"
}

If the text contains no ingredients, return an empty ingredients array.`

// Extraction is the validated result of an ingredient extraction.
type Extraction struct {
	// Ingredients are the normalized ingredient names, in recipe order.
	Ingredients []string `json:"ingredients"`

	// Reasoning is the model's note on what it extracted or skipped.
	Reasoning string `json:"reasoning"`
}

// llmResponse is the expected JSON structure returned by the model.
type llmResponse struct {
	Ingredients []string `json:"ingredients"`
	Reasoning   string   `json:"reasoning"`
}

// Option is a functional option for configuring an [Extractor].
type Option func(*Extractor)

// WithTemperature sets the LLM sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(e *Extractor) {
		e.temperature = temp
	}
}

// Extractor turns recipe text into a normalized ingredient list via an
// [llm.Provider]. It is safe for concurrent use.
type Extractor struct {
	llm         llm.Provider
	temperature float64
}

// New returns an [Extractor] backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract sends the recipe text to the model and validates the structured
// response. Model and parse failures surface as errors — there is no partial
// extraction.
func (e *Extractor) Extract(ctx context.Context, recipeText string) (*Extraction, error) {
	recipeText = strings.TrimSpace(recipeText)
	if recipeText == "" {
		return nil, fmt.Errorf("recipe: recipe text must not be empty")
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  e.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: recipeText},
		},
	}

	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("recipe: complete: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("recipe: provider returned no response")
	}

	cleaned := stripMarkdown(resp.Content)
	var r llmResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("recipe: parse response: %w", err)
	}

	out := &Extraction{
		Ingredients: make([]string, 0, len(r.Ingredients)),
		Reasoning:   strings.TrimSpace(r.Reasoning),
	}
	for _, ing := range r.Ingredients {
		ing = strings.TrimSpace(ing)
		if ing != "" {
			out.Ingredients = append(out.Ingredients, ing)
		}
	}
	return out, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
