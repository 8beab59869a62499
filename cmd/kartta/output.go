package main

import (
	"sort"
	"time"

	"github.com/karttaio/kartta/types"
)

const timeResolution = 10 * time.Millisecond

func categoryOf(s string) types.Category { return types.Category(s) }

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
