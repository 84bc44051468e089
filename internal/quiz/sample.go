package quiz

import (
	"math/rand/v2"
	"slices"
)

// sample draws n ids uniformly without replacement using a partial
// Fisher-Yates shuffle over a copy of ids.
func sample(r *rand.Rand, ids []string, n int) []string {
	out := slices.Clone(ids)
	n = min(max(n, 0), len(out))
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:n]
}

// idSet is a small helper for membership checks.
type idSet map[string]struct{}

func newIDSet(ids ...[]string) idSet {
	s := make(idSet)
	for _, list := range ids {
		for _, id := range list {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// filter returns the ids in order for which keep is true.
func filter(ids []string, keep func(string) bool) []string {
	var out []string
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}
