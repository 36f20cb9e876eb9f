package linker

import (
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() []CatalogEntry {
	return []CatalogEntry{
		{ID: "1", Title: "Beef Stew", Ingredients: []string{"beef chuck", "carrots", "red wine"}, Tags: []string{"slow cooker", "pie"}},
		{ID: "2", Title: "Mini Chocolate-Chip Cookies", Slug: "choc-cookies", Ingredients: []string{"butter", "brown sugar"}, Tags: []string{"baking"}},
		{ID: "3", Title: "Carrot Cake", Ingredients: []string{"carrots", "walnuts"}, Tags: []string{"dessert"}},
	}
}

func TestSuggestLinks_MatchesTitleIngredientsAndTags(t *testing.T) {
	content := "<p>This beef dish simmers carrots in a slow cooker, then we finish with butter.</p>"

	got := SuggestLinks(content, sampleCatalog())

	require.Len(t, got, 4)
	assert.Equal(t, Suggestion{Keyword: "beef", URL: "/recipes/beef-stew", TargetLabel: "Beef Stew"}, got[0])
	assert.Equal(t, Suggestion{Keyword: "carrots", URL: "/recipes/beef-stew", TargetLabel: "Beef Stew"}, got[1])
	assert.Equal(t, Suggestion{Keyword: "slow cooker", URL: "/recipes/beef-stew", TargetLabel: "Beef Stew"}, got[2])
	assert.Equal(t, Suggestion{Keyword: "butter", URL: "/recipes/choc-cookies", TargetLabel: "Mini Chocolate-Chip Cookies"}, got[3])
}

func TestSuggestLinks_TagsMatchBySubstring(t *testing.T) {
	catalog := []CatalogEntry{{ID: "1", Title: "Lemon Tart", Tags: []string{"bake"}}}

	got := SuggestLinks("the bakery opens early", catalog)

	require.Len(t, got, 1)
	assert.Equal(t, "bake", got[0].Keyword)
}

func TestSuggestLinks_NeverShortKeywords(t *testing.T) {
	catalog := []CatalogEntry{{ID: "1", Title: "Egg Pie", Ingredients: []string{"egg", "oil"}, Tags: []string{"pie", "egg"}}}

	assert.Empty(t, SuggestLinks("egg pie with oil", catalog))
}

func TestSuggestLinks_CapsAndDeduplicates(t *testing.T) {
	var catalog []CatalogEntry
	content := ""
	for i := 0; i < 30; i++ {
		word := fmt.Sprintf("ingredient%02d", i)
		content += word + " shared "
		catalog = append(catalog, CatalogEntry{
			ID:          fmt.Sprint(i),
			Title:       "Shared " + word,
			Ingredients: []string{word},
		})
	}

	got := SuggestLinks(content, catalog)

	require.Len(t, got, DefaultSuggestLimit)
	seen := map[string]bool{}
	for _, s := range got {
		assert.False(t, seen[s.Keyword], "duplicate keyword %q", s.Keyword)
		seen[s.Keyword] = true
		assert.GreaterOrEqual(t, utf8.RuneCountInString(s.Keyword), MinKeywordLength)
	}
	assert.Equal(t, "shared", got[0].Keyword)
	assert.Equal(t, "/recipes/shared-ingredient00", got[0].URL)
}

func TestSuggestLinks_Deterministic(t *testing.T) {
	content := "beef carrots butter walnuts dessert baking slow cooker"
	first := SuggestLinks(content, sampleCatalog())
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, SuggestLinks(content, sampleCatalog()))
	}
}

func TestSuggester_CustomPrefixAndLimit(t *testing.T) {
	s := NewSuggester("/blog/", 2)

	got := s.Suggest("beef carrots butter", sampleCatalog())

	require.Len(t, got, 2)
	assert.Equal(t, "/blog/beef-stew", got[0].URL)
}

func TestSuggestLinks_EmptyInputs(t *testing.T) {
	assert.Empty(t, SuggestLinks("", sampleCatalog()))
	assert.Empty(t, SuggestLinks("beef", nil))
}

func TestSuggestLinks_IgnoresMarkup(t *testing.T) {
	content := `<p>A hearty stew.</p><a href="/recipes/chicken-soup" class="internal-link">stew</a>` +
		`<img src="/images/uploads/garlic.jpg" alt="">`
	catalog := []CatalogEntry{
		{ID: "1", Title: "Chicken Soup", Tags: []string{"internal"}},
		{ID: "2", Title: "Garlic Bread", Tags: []string{"uploads"}},
		{ID: "3", Title: "Beef Stew"},
	}

	got := SuggestLinks(content, catalog)

	require.Len(t, got, 1)
	assert.Equal(t, Suggestion{Keyword: "stew", URL: "/recipes/beef-stew", TargetLabel: "Beef Stew"}, got[0])
}

func TestSuggestLinks_BlockBoundariesSeparateWords(t *testing.T) {
	catalog := []CatalogEntry{{ID: "1", Title: "Lemon Tart"}}

	got := SuggestLinks("<p>Lemon</p><p>Tart</p>", catalog)

	require.Len(t, got, 2)
	assert.Equal(t, "lemon", got[0].Keyword)
	assert.Equal(t, "tart", got[1].Keyword)
}
