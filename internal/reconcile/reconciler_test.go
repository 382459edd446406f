package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/echolist/internal/list"
	"github.com/MrWong99/echolist/internal/listtype"
	"github.com/MrWong99/echolist/pkg/provider/llm"
	llmmock "github.com/MrWong99/echolist/pkg/provider/llm/mock"
)

func groceryConfig(t *testing.T) listtype.Config {
	t.Helper()
	cfg, ok := listtype.Lookup(listtype.TypeGrocery)
	if !ok {
		t.Fatal("grocery category missing")
	}
	return cfg
}

func modelOutput(t *testing.T, reasoning string, items ...string) string {
	t.Helper()
	states := make([]ItemState, 0, len(items))
	for _, it := range items {
		states = append(states, ItemState{Text: it})
	}
	body, err := json.Marshal(map[string]any{
		"items":     states,
		"reasoning": reasoning,
		"changes":   Changes{Added: items},
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestReconcileSendsItemsAndInstruction(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: modelOutput(t, "ok", "milk")},
	}
	r := New(provider, WithTemperature(0.3), WithMaxItems(50))

	current := []list.Item{
		{ID: "1", Text: "milk"},
		{ID: "2", Text: "bread", Completed: true},
	}
	_, err := r.Reconcile(t.Context(), groceryConfig(t), current, "remove the bread")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0].Req
	if req.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v, want a single user message", req.Messages)
	}
	if req.Messages[0].Content != "remove the bread" {
		t.Errorf("instruction = %q", req.Messages[0].Content)
	}
	for _, want := range []string{"1. milk", "2. bread [done]", "At most 50 items", "grocery shopping list"} {
		if !strings.Contains(req.SystemPrompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestReconcileEmptyListSerialization(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: modelOutput(t, "ok", "milk")},
	}
	r := New(provider)

	if _, err := r.Reconcile(t.Context(), groceryConfig(t), nil, "add milk"); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !strings.Contains(provider.CompleteCalls[0].Req.SystemPrompt, "(the list is empty)") {
		t.Error("empty list should be serialized as a placeholder")
	}
}

func TestReconcileParsesResult(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: modelOutput(t, "Added two items.", "milk", "bread")},
	}
	r := New(provider)

	result, err := r.Reconcile(t.Context(), groceryConfig(t), nil, "add milk and bread")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Items) != 2 || result.Items[0].Text != "milk" {
		t.Errorf("items = %+v", result.Items)
	}
	if result.Reasoning != "Added two items." {
		t.Errorf("reasoning = %q", result.Reasoning)
	}
	if result.Changes.Removed == nil || result.Changes.Modified == nil {
		t.Error("nil change arrays must be normalised to empty slices")
	}
}

func TestReconcileStripsMarkdownFences(t *testing.T) {
	t.Parallel()
	fenced := "```json\n" + modelOutput(t, "ok", "milk") + "\n```"
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: fenced},
	}
	r := New(provider)

	result, err := r.Reconcile(t.Context(), groceryConfig(t), nil, "add milk")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Items) != 1 {
		t.Errorf("items = %+v, want one", result.Items)
	}
}

func TestReconcileRejectsBadOutput(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		content string
	}{
		{"not json", "sorry, I cannot help with that"},
		{"missing items", `{"reasoning": "ok"}`},
		{"empty item text", `{"items": [{"text": "  "}], "reasoning": "ok"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			provider := &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: tc.content},
			}
			r := New(provider)
			if _, err := r.Reconcile(t.Context(), groceryConfig(t), nil, "add milk"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReconcileEnforcesMaxItems(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: modelOutput(t, "ok", "a", "b", "c")},
	}
	r := New(provider, WithMaxItems(2))

	_, err := r.Reconcile(t.Context(), groceryConfig(t), nil, "add everything")
	if err == nil || !strings.Contains(err.Error(), "exceeds the limit") {
		t.Fatalf("err = %v, want item limit violation", err)
	}
}

func TestReconcileRejectsEmptyInstruction(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{}
	r := New(provider)

	if _, err := r.Reconcile(t.Context(), groceryConfig(t), nil, "   "); err == nil {
		t.Fatal("expected an error")
	}
	if len(provider.CompleteCalls) != 0 {
		t.Error("provider must not be called for an empty instruction")
	}
}

func TestReconcilePropagatesProviderError(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("model unavailable")
	r := New(&llmmock.Provider{CompleteErr: wantErr})

	_, err := r.Reconcile(t.Context(), groceryConfig(t), nil, "add milk")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestNoOpInstructionPreservesItemSet(t *testing.T) {
	t.Parallel()
	store, err := list.NewFileStore(filepath.Join(t.TempDir(), "lists.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	created, err := store.Create(ctx, list.CreateRequest{Type: "grocery", Name: "Groceries"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, text := range []string{"milk", "bread", "eggs"} {
		if _, err := store.AddItem(ctx, created.ID, list.Item{Text: text}); err != nil {
			t.Fatalf("AddItem(%q): %v", text, err)
		}
	}
	before, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := store.UpdateItem(ctx, created.ID, before.Items[1].ID, list.ItemUpdate{Completed: ptr(true)}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	before, _ = store.Get(ctx, created.ID)

	// The model answers with the list exactly as it stands.
	echo := make([]ItemState, 0, len(before.Items))
	for _, it := range before.Items {
		echo = append(echo, ItemState{Text: it.Text, Completed: it.Completed})
	}
	body, err := json.Marshal(map[string]any{
		"items":     echo,
		"reasoning": "nothing to change",
		"changes":   Changes{},
	})
	if err != nil {
		t.Fatal(err)
	}
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: string(body)},
	}

	r := New(provider)
	result, err := r.Reconcile(ctx, groceryConfig(t), before.Items, "read the list back to me")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	after, err := r.Apply(ctx, store, created.ID, result)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(after.Items) != len(before.Items) {
		t.Fatalf("item count changed: %d -> %d", len(before.Items), len(after.Items))
	}
	for i := range after.Items {
		if after.Items[i].Text != before.Items[i].Text {
			t.Errorf("item %d text = %q, want %q", i, after.Items[i].Text, before.Items[i].Text)
		}
		if after.Items[i].Completed != before.Items[i].Completed {
			t.Errorf("item %d completed = %v, want %v", i, after.Items[i].Completed, before.Items[i].Completed)
		}
		// A wholesale replace mints new identity even when nothing changed.
		if after.Items[i].ID == "" {
			t.Errorf("item %d lost its ID", i)
		}
	}
}

func ptr[T any](v T) *T { return &v }

func TestApplyAssignsFreshIdentity(t *testing.T) {
	t.Parallel()
	store, err := list.NewFileStore(filepath.Join(t.TempDir(), "lists.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	created, err := store.Create(ctx, list.CreateRequest{Type: "grocery", Name: "Groceries"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	r := New(&llmmock.Provider{})
	result := &Result{Items: []ItemState{
		{Text: "milk"},
		{Text: "bread", Completed: true},
	}}
	updated, err := r.Apply(ctx, store, created.ID, result)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(updated.Items))
	}
	for _, it := range updated.Items {
		if it.ID == "" || it.CreatedAt.IsZero() {
			t.Errorf("item %q missing identity or timestamps", it.Text)
		}
	}
	if !updated.Items[1].Completed {
		t.Error("completed flag must carry over")
	}
}
