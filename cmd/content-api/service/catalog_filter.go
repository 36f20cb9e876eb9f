package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/lyzr/cookbook/common/linker"
)

// CatalogFilter narrows a catalog with CEL expressions over `entry`,
// e.g. `entry.category == "dessert" && "baking" in entry.tags`
type CatalogFilter struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewCatalogFilter creates a filter with an empty program cache
func NewCatalogFilter() *CatalogFilter {
	return &CatalogFilter{
		cache: make(map[string]cel.Program),
	}
}

// Filter keeps the entries for which expr evaluates to true.
// An empty expression keeps everything.
func (f *CatalogFilter) Filter(expr string, entries []linker.CatalogEntry) ([]linker.CatalogEntry, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return entries, nil
	}

	prg, err := f.program(expr)
	if err != nil {
		return nil, err
	}

	kept := make([]linker.CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		out, _, err := prg.Eval(map[string]interface{}{
			"entry": entryVars(entry),
		})
		if err != nil {
			return nil, fmt.Errorf("CEL evaluation error for entry %s: %w", entry.ID, err)
		}

		match, ok := out.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
		}
		if match {
			kept = append(kept, entry)
		}
	}

	return kept, nil
}

// Compile checks expr without evaluating it
func (f *CatalogFilter) Compile(expr string) error {
	_, err := f.program(strings.TrimSpace(expr))
	return err
}

// CacheSize returns the number of cached programs
func (f *CatalogFilter) CacheSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

func (f *CatalogFilter) program(expr string) (cel.Program, error) {
	f.mu.RLock()
	prg, exists := f.cache[expr]
	f.mu.RUnlock()
	if exists {
		return prg, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("entry", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}

	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	f.mu.Lock()
	f.cache[expr] = prg
	f.mu.Unlock()

	return prg, nil
}

func entryVars(entry linker.CatalogEntry) map[string]interface{} {
	return map[string]interface{}{
		"id":          entry.ID,
		"title":       entry.Title,
		"slug":        entry.Slug,
		"category":    entry.Category,
		"ingredients": stringList(entry.Ingredients),
		"tags":        stringList(entry.Tags),
	}
}

func stringList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
