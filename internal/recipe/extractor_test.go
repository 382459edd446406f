package recipe

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/echolist/pkg/provider/llm"
	llmmock "github.com/MrWong99/echolist/pkg/provider/llm/mock"
)

func TestExtractSendsRecipeText(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"ingredients": ["flour", "milk"], "reasoning": "Two ingredients."}`,
		},
	}
	e := New(provider, WithTemperature(0.5))

	got, err := e.Extract(t.Context(), "2 cups flour, 1 cup milk")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got.Ingredients) != 2 || got.Ingredients[0] != "flour" {
		t.Errorf("ingredients = %v", got.Ingredients)
	}
	if got.Reasoning != "Two ingredients." {
		t.Errorf("reasoning = %q", got.Reasoning)
	}

	req := provider.CompleteCalls[0].Req
	if req.Temperature != 0.5 {
		t.Errorf("temperature = %v, want 0.5", req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "2 cups flour, 1 cup milk" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if !strings.Contains(req.SystemPrompt, "pantry staples") {
		t.Error("system prompt should carry the extraction contract")
	}
}

func TestExtractStripsMarkdownAndBlanks(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n{\"ingredients\": [\"eggs\", \"  \", \"butter\"], \"reasoning\": \"ok\"}\n```",
		},
	}
	e := New(provider)

	got, err := e.Extract(t.Context(), "recipe text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got.Ingredients) != 2 || got.Ingredients[1] != "butter" {
		t.Errorf("ingredients = %v, want [eggs butter]", got.Ingredients)
	}
}

func TestExtractEmptyIngredientsIsValid(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"ingredients": [], "reasoning": "No ingredients found."}`,
		},
	}
	e := New(provider)

	got, err := e.Extract(t.Context(), "this text has no recipe in it")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Ingredients == nil || len(got.Ingredients) != 0 {
		t.Errorf("ingredients = %v, want empty non-nil slice", got.Ingredients)
	}
}

func TestExtractRejectsEmptyText(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{}
	e := New(provider)

	if _, err := e.Extract(t.Context(), "   "); err == nil {
		t.Fatal("expected an error")
	}
	if len(provider.CompleteCalls) != 0 {
		t.Error("provider must not be called for empty text")
	}
}

func TestExtractRejectsUnparseableOutput(t *testing.T) {
	t.Parallel()
	e := New(&llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "here are your ingredients: flour"},
	})
	if _, err := e.Extract(t.Context(), "recipe"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestExtractPropagatesProviderError(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("model unavailable")
	e := New(&llmmock.Provider{CompleteErr: wantErr})

	if _, err := e.Extract(t.Context(), "recipe"); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}
