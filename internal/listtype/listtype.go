// Package listtype holds the static registry of list categories.
//
// Each category pairs a display identity (name, icon, color) with an
// interpretation policy: the free-text prompt that tells the language model
// how to read natural-language instructions for lists of that category. The
// registry is immutable, process-wide reference data — it is looked up by
// type at reconciliation time and never persisted per-list.
package listtype

import "github.com/MrWong99/echolist/internal/list"

// Type identifies a list category.
type Type string

const (
	TypeGrocery        Type = "grocery"
	TypeTodo           Type = "todo"
	TypeMovie          Type = "movie"
	TypeBirthday       Type = "birthday"
	TypeImportantDates Type = "important-dates"
	TypeCustom         Type = "custom"
)

// IsValid reports whether t is a recognised list category.
func (t Type) IsValid() bool {
	switch t {
	case TypeGrocery, TypeTodo, TypeMovie, TypeBirthday, TypeImportantDates, TypeCustom:
		return true
	}
	return false
}

// Config describes a single list category.
type Config struct {
	// Type is the category identifier.
	Type Type `json:"type"`

	// DisplayName is the human-readable category name.
	DisplayName string `json:"displayName"`

	// Description summarises what the category is for.
	Description string `json:"description"`

	// Icon is a client display hint (emoji).
	Icon string `json:"icon"`

	// Color is a client display hint (hex).
	Color string `json:"color"`

	// InstructionPolicy is the prompt fragment that tells the model how to
	// interpret natural-language instructions for this category.
	InstructionPolicy string `json:"-"`

	// DefaultSettings are merged with caller overrides at list creation.
	DefaultSettings list.Settings `json:"defaultSettings"`

	// ItemLabel names the unit of content ("item", "task", "movie", ...).
	ItemLabel string `json:"itemLabel"`
}

// crossCategoryRule is appended to every policy: items that look like they
// belong to a different category are kept in place and called out in the
// reasoning rather than silently redirected.
const crossCategoryRule = `If an item clearly belongs to a different kind of list (for example a movie title on a grocery list), keep it where the user put it and mention in your reasoning that it might fit better elsewhere. Never move or drop it on your own.`

var configs = []Config{
	{
		Type:        TypeGrocery,
		DisplayName: "Grocery List",
		Description: "Shopping items for the next store run",
		Icon:        "🛒",
		Color:       "#4CAF50",
		InstructionPolicy: `This is a grocery shopping list. Interpret instructions such as:
- "add milk" or "we need milk" → append the item
- "remove bread" or "we got the bread" → delete the matching item
- "take the last one out" / "take that last one out" → delete the item currently at the end of the list
- "clear the list" → remove everything
Keep item names short and in lower case the way people write shopping lists. ` + crossCategoryRule,
		DefaultSettings: list.Settings{AllowDuplicates: false, SortOrder: list.SortManual},
		ItemLabel:       "item",
	},
	{
		Type:        TypeTodo,
		DisplayName: "To-Do List",
		Description: "Tasks to get done",
		Icon:        "✅",
		Color:       "#2196F3",
		InstructionPolicy: `This is a to-do list. In addition to adding and removing tasks, understand completion phrasing:
- "mark X done", "X is finished", "I did X" → set the task's completed flag to true, keep the task on the list
- "reopen X" or "X isn't done after all" → set completed back to false
- "add ..." / "remove ..." behave as on any list.
Preserve the order of tasks the user has not mentioned. ` + crossCategoryRule,
		DefaultSettings: list.Settings{AllowDuplicates: false, SortOrder: list.SortManual, AutoComplete: true},
		ItemLabel:       "task",
	},
	{
		Type:        TypeMovie,
		DisplayName: "Movie Watchlist",
		Description: "Films and shows to watch",
		Icon:        "🎬",
		Color:       "#9C27B0",
		InstructionPolicy: `This is a movie watchlist. Titles keep their proper capitalisation. "we watched X" or "seen it" marks X completed rather than removing it. ` + crossCategoryRule,
		DefaultSettings: list.Settings{AllowDuplicates: false, SortOrder: list.SortManual},
		ItemLabel:       "movie",
	},
	{
		Type:        TypeBirthday,
		DisplayName: "Birthdays",
		Description: "People and their birthdays",
		Icon:        "🎂",
		Color:       "#FF9800",
		InstructionPolicy: `This is a birthday list. Each entry is a person's name, optionally followed by their date, e.g. "Maria — March 12". When an instruction supplies a date for an existing person, update that entry in place instead of adding a second one. ` + crossCategoryRule,
		DefaultSettings: list.Settings{AllowDuplicates: false, SortOrder: list.SortAlphabetical},
		ItemLabel:       "person",
	},
	{
		Type:        TypeImportantDates,
		DisplayName: "Important Dates",
		Description: "Appointments, deadlines, anniversaries",
		Icon:        "📅",
		Color:       "#F44336",
		InstructionPolicy: `This is a list of important dates. Each entry is an event with its date, e.g. "Dentist — 2026-09-14". Past events are removed only when the user says so. ` + crossCategoryRule,
		DefaultSettings: list.Settings{AllowDuplicates: false, SortOrder: list.SortManual},
		ItemLabel:       "date",
	},
	{
		Type:        TypeCustom,
		DisplayName: "Custom List",
		Description: "A free-form list",
		Icon:        "📝",
		Color:       "#607D8B",
		InstructionPolicy: `This is a free-form list. Apply instructions literally: add what the user asks to add, remove what they ask to remove, and change only what they mention. ` + crossCategoryRule,
		DefaultSettings: list.Settings{AllowDuplicates: true, SortOrder: list.SortManual},
		ItemLabel:       "item",
	},
}

// byType is the lookup index built once at init.
var byType = func() map[Type]Config {
	m := make(map[Type]Config, len(configs))
	for _, c := range configs {
		m[c.Type] = c
	}
	return m
}()

// Lookup returns the configuration for t.
func Lookup(t Type) (Config, bool) {
	c, ok := byType[t]
	return c, ok
}

// All returns every category configuration in stable declaration order.
// The returned slice is a copy and safe to modify.
func All() []Config {
	out := make([]Config, len(configs))
	copy(out, configs)
	return out
}
