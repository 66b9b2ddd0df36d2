package teaching

import (
	"sort"
	"strings"
)

// Whitelist decides which conversation scopes may teach. It is parsed from
// "off", "all" (or "*"), or a comma separated id list. Empty means off.
type Whitelist struct {
	all bool
	ids map[string]struct{}
}

func ParseWhitelist(raw string) Whitelist {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "off", "none", "false":
		return Whitelist{}
	case "all", "*", "on", "true":
		return Whitelist{all: true}
	}

	ids := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids[id] = struct{}{}
		}
	}
	return Whitelist{ids: ids}
}

func (w Whitelist) Allows(scope string) bool {
	if w.all {
		return true
	}
	_, ok := w.ids[strings.TrimSpace(scope)]
	return ok
}

func (w Whitelist) String() string {
	if w.all {
		return "all"
	}
	if len(w.ids) == 0 {
		return "off"
	}
	ids := make([]string, 0, len(w.ids))
	for id := range w.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
