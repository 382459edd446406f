// Package reconcile implements the natural-language list-mutation contract.
//
// The [Reconciler] sends a list's current items and a free-text instruction
// to an [llm.Provider] together with the list category's interpretation
// policy. The model is instructed (via a strict system prompt) to return a
// structured JSON response containing the entire new list — not a delta —
// plus a human-readable reasoning string and a classified diff. The response
// is schema-validated before anything touches the store; on any model or
// validation failure the old item collection remains authoritative.
//
// Whole-list replacement is deliberate: having the model emit incremental
// operations against item identities it cannot see produces fragile diffs.
// The tradeoff — identity churn and a lost-update window under concurrent
// edits — is accepted for the single-user deployment target.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/echolist/internal/list"
	"github.com/MrWong99/echolist/internal/listtype"
	"github.com/MrWong99/echolist/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1
	defaultMaxItems    = 200
)

// systemPromptTemplate is the base system prompt. The category policy and
// the serialized current items are interpolated at call time.
const systemPromptTemplate = `You are a list management assistant. The user edits their list by speaking; you apply their instruction and return the complete new list.

%s

Rules:
- Return the ENTIRE list after applying the instruction, not just the changes.
- Keep items the instruction does not mention, in their current order.
- Positional references ("the last one", "the first item", "that one") resolve against the numbered list below.
- If the instruction asks for no changes, return the list unchanged.
- Never invent items the user did not ask for.
- At most %d items.

Current list:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "items": [
    {"text": "<item text>", "completed": <true|false>}
  ],
  "reasoning": "<one or two sentences explaining what you did>",
  "changes": {
    "added": ["<text of each added item>"],
    "removed": ["<text of each removed item>"],
    "modified": ["<text of each changed item>"]
  }
}`

// ItemState is one entry of the model's output: the full desired state of a
// single list position.
type ItemState struct {
	// Text is the item content.
	Text string `json:"text"`

	// Completed is the item's done flag.
	Completed bool `json:"completed"`
}

// Changes classifies the diff between the old and new item collections, as
// reported by the model.
type Changes struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// Result is a fully validated reconciliation outcome, ready to apply.
type Result struct {
	// Items is the entire new list state, in order.
	Items []ItemState `json:"items"`

	// Reasoning is the model's human-readable explanation.
	Reasoning string `json:"reasoning"`

	// Changes is the classified diff.
	Changes Changes `json:"changes"`
}

// llmResponse is the expected JSON structure returned by the model.
type llmResponse struct {
	Items []struct {
		Text      string `json:"text"`
		Completed bool   `json:"completed"`
	} `json:"items"`
	Reasoning string  `json:"reasoning"`
	Changes   Changes `json:"changes"`
}

// Option is a functional option for configuring a [Reconciler].
type Option func(*Reconciler)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic edits. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(r *Reconciler) {
		r.temperature = temp
	}
}

// WithMaxItems bounds the number of items the model may return. Default: 200.
func WithMaxItems(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxItems = n
		}
	}
}

// Reconciler turns (current items, instruction) into a new authoritative
// item collection via an [llm.Provider]. It is safe for concurrent use.
type Reconciler struct {
	llm         llm.Provider
	temperature float64
	maxItems    int
}

// New returns a [Reconciler] backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Reconciler {
	r := &Reconciler{
		llm:         provider,
		temperature: defaultTemperature,
		maxItems:    defaultMaxItems,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile sends the instruction and the serialized current items to the
// model and validates the structured response.
//
// On any failure — model error, unparseable output, schema violation — it
// returns a non-nil error and the caller must leave the store untouched.
func (r *Reconciler) Reconcile(ctx context.Context, cfg listtype.Config, current []list.Item, instruction string) (*Result, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, fmt.Errorf("reconcile: instruction must not be empty")
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(cfg, current, r.maxItems),
		Temperature:  r.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: instruction},
		},
	}

	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reconcile: complete: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("reconcile: provider returned no response")
	}

	result, err := parseResponse(resp.Content, r.maxItems)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	return result, nil
}

// Apply replaces the target list's items with the result, assigning fresh
// identities and timestamps. Identity continuity across a reconciliation
// pass is explicitly not guaranteed — only text and position survive.
func (r *Reconciler) Apply(ctx context.Context, store list.Store, listID string, result *Result) (list.List, error) {
	now := time.Now().UTC()
	items := make([]list.Item, 0, len(result.Items))
	for _, st := range result.Items {
		items = append(items, list.Item{
			ID:        uuid.NewString(),
			Text:      st.Text,
			Completed: st.Completed,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return store.ReplaceItems(ctx, listID, items)
}

// buildSystemPrompt interpolates the category policy and the 1-indexed
// serialized item view into the prompt template.
func buildSystemPrompt(cfg listtype.Config, current []list.Item, maxItems int) string {
	return fmt.Sprintf(systemPromptTemplate, cfg.InstructionPolicy, maxItems, serializeItems(current))
}

// serializeItems renders the current items as a numbered view, each tagged
// with its completed flag, so positional references resolve deterministically.
func serializeItems(items []list.Item) string {
	if len(items) == 0 {
		return "(the list is empty)"
	}
	var sb strings.Builder
	for i, it := range items {
		fmt.Fprintf(&sb, "%d. %s", i+1, it.Text)
		if it.Completed {
			sb.WriteString(" [done]")
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseResponse unmarshals and schema-validates the model output.
func parseResponse(content string, maxItems int) (*Result, error) {
	cleaned := stripMarkdown(content)

	var r llmResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if r.Items == nil {
		return nil, fmt.Errorf("parse response: missing items array")
	}
	if len(r.Items) > maxItems {
		return nil, fmt.Errorf("parse response: %d items exceeds the limit of %d", len(r.Items), maxItems)
	}

	result := &Result{
		Items:     make([]ItemState, 0, len(r.Items)),
		Reasoning: strings.TrimSpace(r.Reasoning),
		Changes:   normalizeChanges(r.Changes),
	}
	for i, it := range r.Items {
		text := strings.TrimSpace(it.Text)
		if text == "" {
			return nil, fmt.Errorf("parse response: item %d has empty text", i+1)
		}
		result.Items = append(result.Items, ItemState{Text: text, Completed: it.Completed})
	}
	return result, nil
}

// normalizeChanges replaces nil diff arrays with empty ones so clients can
// iterate without nil checks.
func normalizeChanges(c Changes) Changes {
	if c.Added == nil {
		c.Added = []string{}
	}
	if c.Removed == nil {
		c.Removed = []string{}
	}
	if c.Modified == nil {
		c.Modified = []string{}
	}
	return c
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
