package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/cookbook/common/linker"
)

func filterCatalog() []linker.CatalogEntry {
	return []linker.CatalogEntry{
		{ID: "1", Title: "Beef Stew", Category: "mains", Tags: []string{"slow cooker"}},
		{ID: "2", Title: "Carrot Cake", Category: "dessert", Tags: []string{"baking"}},
		{ID: "3", Title: "Lemon Tart", Category: "dessert"},
	}
}

func TestCatalogFilter_Filter(t *testing.T) {
	f := NewCatalogFilter()

	got, err := f.Filter(`entry.category == "dessert"`, filterCatalog())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Carrot Cake", got[0].Title)

	got, err = f.Filter(`"baking" in entry.tags`, filterCatalog())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestCatalogFilter_EmptyExpressionKeepsAll(t *testing.T) {
	got, err := NewCatalogFilter().Filter("  ", filterCatalog())
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCatalogFilter_CachesPrograms(t *testing.T) {
	f := NewCatalogFilter()
	for i := 0; i < 3; i++ {
		_, err := f.Filter(`entry.title.startsWith("B")`, filterCatalog())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.CacheSize())
}

func TestCatalogFilter_Errors(t *testing.T) {
	f := NewCatalogFilter()

	_, err := f.Filter(`entry.category ==`, filterCatalog())
	assert.ErrorContains(t, err, "CEL compilation error")

	_, err = f.Filter(`entry.title`, filterCatalog())
	assert.ErrorContains(t, err, "did not return boolean")

	assert.Error(t, f.Compile(`(`))
	assert.NoError(t, f.Compile(`true`))
}
