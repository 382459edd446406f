package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrExtractionFailed is returned when no strategy yields a plausible amount
// of ingredient text from the fetched page.
var ErrExtractionFailed = errors.New("recipe: could not extract ingredients from page")

// minPlausibleLen is the minimum total ingredient text length a strategy
// must produce to be accepted.
const minPlausibleLen = 12

// strategy is one rung of the extraction ladder. It inspects the parsed
// document and reports the ingredient lines it found, or ok=false when it
// cannot contribute. Strategies are tried in order; none is guaranteed, so
// adding or reordering them should stay cheap.
type strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Extract returns candidate ingredient lines from doc.
	Extract(doc *goquery.Document) (lines []string, ok bool)
}

// Fetcher downloads a recipe page and runs the extraction ladder over it.
type Fetcher struct {
	client     *http.Client
	strategies []strategy
}

// NewFetcher returns a [Fetcher] with the default strategy ladder:
// schema.org JSON-LD first, then ranked CSS selectors, then a keyword scan
// over list-like page text. A nil client uses http.DefaultClient.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client: client,
		strategies: []strategy{
			jsonLDStrategy{},
			selectorStrategy{},
			keywordStrategy{},
		},
	}
}

// Fetch downloads url and returns the raw ingredient text found by the first
// strategy that produces a plausible result. The text is still unnormalized —
// feed it to [Extractor.Extract] afterwards.
//
// Returns [ErrExtractionFailed] when every strategy comes up empty.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("recipe: build request: %w", err)
	}
	req.Header.Set("User-Agent", "echolist/1.0 (recipe import)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("recipe: fetch %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("recipe: fetch %q: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("recipe: parse page: %w", err)
	}

	return f.extract(doc)
}

// extract runs the ladder over an already-parsed document.
func (f *Fetcher) extract(doc *goquery.Document) (string, error) {
	for _, s := range f.strategies {
		lines, ok := s.Extract(doc)
		if !ok {
			continue
		}
		text := strings.Join(lines, "\n")
		if len(text) >= minPlausibleLen {
			return text, nil
		}
	}
	return "", ErrExtractionFailed
}

// ---- strategies ----

// jsonLDStrategy reads schema.org Recipe structured data embedded in
// <script type="application/ld+json"> blocks. This is the most reliable
// source when present — publishers emit it for search engines.
type jsonLDStrategy struct{}

func (jsonLDStrategy) Name() string { return "json-ld" }

func (jsonLDStrategy) Extract(doc *goquery.Document) ([]string, bool) {
	var lines []string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var node any
		if err := json.Unmarshal([]byte(sel.Text()), &node); err != nil {
			return true
		}
		lines = findRecipeIngredients(node)
		return len(lines) == 0
	})
	return lines, len(lines) > 0
}

// findRecipeIngredients walks a decoded JSON-LD value looking for a
// recipeIngredient array. Handles top-level arrays and @graph containers.
func findRecipeIngredients(node any) []string {
	switch v := node.(type) {
	case []any:
		for _, entry := range v {
			if found := findRecipeIngredients(entry); len(found) > 0 {
				return found
			}
		}
	case map[string]any:
		if raw, ok := v["recipeIngredient"].([]any); ok {
			var out []string
			for _, ing := range raw {
				if s, ok := ing.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			if len(out) > 0 {
				return out
			}
		}
		if graph, ok := v["@graph"]; ok {
			return findRecipeIngredients(graph)
		}
	}
	return nil
}

// selectorStrategy tries a ranked sequence of CSS selectors commonly used
// for ingredient markup. First selector with enough matches wins.
type selectorStrategy struct{}

func (selectorStrategy) Name() string { return "css-selectors" }

// ingredientSelectors is ordered from most to least specific.
var ingredientSelectors = []string{
	`[itemprop="recipeIngredient"]`,
	`[itemprop="ingredients"]`,
	`.recipe-ingredients li`,
	`.recipe-ingredient`,
	`.ingredients-list li`,
	`.ingredient-list li`,
	`ul.ingredients li`,
	`.ingredients li`,
}

func (selectorStrategy) Extract(doc *goquery.Document) ([]string, bool) {
	for _, sel := range ingredientSelectors {
		var lines []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" {
				lines = append(lines, text)
			}
		})
		if len(lines) >= 2 {
			return lines, true
		}
	}
	return nil, false
}

// keywordStrategy is the last resort: scan all list items on the page and
// keep those that look like ingredient lines (start with a quantity, or
// contain a measurement word). Brittle by nature — webpage dependent.
type keywordStrategy struct{}

func (keywordStrategy) Name() string { return "keyword-scan" }

var (
	quantityRe    = regexp.MustCompile(`^\s*[\d¼½¾⅓⅔⅛]|^\s*(a|an|one|two|three|half)\s`)
	measurementRe = regexp.MustCompile(`(?i)\b(cups?|tbsp|tablespoons?|tsp|teaspoons?|grams?|g\b|kg|oz|ounces?|lbs?|pounds?|ml|liters?|litres?|cloves?|pinch|slices?)\b`)
)

func (keywordStrategy) Extract(doc *goquery.Document) ([]string, bool) {
	var lines []string
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || len(text) > 200 {
			return
		}
		if quantityRe.MatchString(text) || measurementRe.MatchString(text) {
			lines = append(lines, text)
		}
	})
	if len(lines) >= 3 {
		return lines, true
	}
	return nil, false
}
