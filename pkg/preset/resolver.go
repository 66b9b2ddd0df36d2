package preset

import (
	"strconv"
	"strings"
)

// MatchFunc maps a raw reference to a node, reporting whether it matched.
type MatchFunc func(ix *Index, ref string) (Node, bool)

// Resolver tries its strategies in order; the first match wins.
type Resolver struct {
	strategies []MatchFunc
}

func NewResolver(strategies ...MatchFunc) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{strategies: strategies}
}

// DefaultStrategies is the chain from most to least confident.
func DefaultStrategies() []MatchFunc {
	return []MatchFunc{MatchExactID, MatchPosition, MatchNormalized, MatchSuffix}
}

func (r *Resolver) Resolve(ix *Index, ref string) (Node, bool) {
	if ix == nil || strings.TrimSpace(ref) == "" {
		return Node{}, false
	}
	for _, match := range r.strategies {
		if n, ok := match(ix, ref); ok {
			return n, true
		}
	}
	return Node{}, false
}

// ResolveTarget prefers a position over an id when both are given.
func (r *Resolver) ResolveTarget(ix *Index, position, id string) (Node, bool) {
	if p := strings.TrimSpace(position); p != "" {
		if n, ok := MatchPosition(ix, p); ok {
			return n, true
		}
	}
	if id != "" {
		if n, ok := r.Resolve(ix, id); ok {
			return n, true
		}
	}
	// a position that was not a clean integer may still be an id
	if position != "" {
		return r.Resolve(ix, position)
	}
	return Node{}, false
}

func MatchExactID(ix *Index, ref string) (Node, bool) {
	return ix.ByID(ref)
}

func MatchPosition(ix *Index, ref string) (Node, bool) {
	ref = strings.TrimSpace(ref)
	if !isDigits(ref) {
		return Node{}, false
	}
	pos, err := strconv.Atoi(ref)
	if err != nil {
		return Node{}, false
	}
	return ix.At(pos)
}

// MatchNormalized trims quotes and whitespace, turns slashes into dots and
// compares against ids and paths.
func MatchNormalized(ix *Index, ref string) (Node, bool) {
	norm := normalizeRef(ref)
	if norm == "" {
		return Node{}, false
	}
	if n, ok := ix.ByID(norm); ok {
		return n, true
	}
	for _, n := range ix.Nodes {
		if n.Path == norm || strings.EqualFold(n.ID, norm) || strings.EqualFold(n.Path, norm) {
			return n, true
		}
	}
	return Node{}, false
}

var kindPrefixes = []string{"meta:", "param:", "parameter:", "parameters:", "params:", "rule:"}

// MatchSuffix drops a kind prefix and accepts a node whose bare id equals the
// reference, or whose id or path ends with it after a '.', ']' or ':'.
func MatchSuffix(ix *Index, ref string) (Node, bool) {
	bare := stripKindPrefix(normalizeRef(ref))
	if bare == "" {
		return Node{}, false
	}
	for _, n := range ix.Nodes {
		if stripKindPrefix(n.ID) == bare {
			return n, true
		}
	}
	for _, n := range ix.Nodes {
		if hasBoundarySuffix(n.ID, bare) || hasBoundarySuffix(n.Path, bare) {
			return n, true
		}
	}
	return Node{}, false
}

func normalizeRef(ref string) string {
	s := strings.TrimSpace(ref)
	s = strings.Trim(s, "\"'`")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", ".")
	s = strings.Trim(s, ".")
	return s
}

func stripKindPrefix(s string) string {
	lower := strings.ToLower(s)
	for _, p := range kindPrefixes {
		if strings.HasPrefix(lower, p) {
			return s[len(p):]
		}
	}
	return s
}

func hasBoundarySuffix(s, suffix string) bool {
	if len(s) <= len(suffix) || !strings.HasSuffix(s, suffix) {
		return false
	}
	switch s[len(s)-len(suffix)-1] {
	case '.', ']', ':':
		return true
	}
	return false
}
