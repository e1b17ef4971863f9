package triggers

import (
	"regexp"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

// regexCache compiles each trigger regex once. Invalid expressions are cached
// as nil and never match.
type regexCache struct {
	mu sync.Mutex
	m  map[string]*regexp.Regexp
}

func (c *regexCache) get(expr string) *regexp.Regexp {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]*regexp.Regexp)
	}
	if re, ok := c.m[expr]; ok {
		return re
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		re = nil
	}
	c.m[expr] = re
	return re
}

func (c *regexCache) reset() {
	c.mu.Lock()
	c.m = nil
	c.mu.Unlock()
}

// matches reports whether text satisfies the trigger's phrase under its
// pattern type. Comparison is case-insensitive for every pattern type.
func (c *regexCache) matches(t *store.Trigger, text string) bool {
	phrase := strings.ToLower(strings.TrimSpace(t.Phrase))
	if phrase == "" {
		return false
	}
	normalized := strings.ToLower(strings.TrimSpace(text))

	switch t.PatternType {
	case store.PatternExact:
		return normalized == phrase
	case store.PatternStartsWith:
		return strings.HasPrefix(normalized, phrase)
	case store.PatternRegex:
		re := c.get(strings.TrimSpace(t.Phrase))
		return re != nil && re.MatchString(strings.TrimSpace(text))
	default: // contains
		return strings.Contains(normalized, phrase)
	}
}
