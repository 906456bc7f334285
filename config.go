package tev

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// Tags with special default behavior: categories carrying them are disabled
// unless a config enables them explicitly.
const (
	TagSlow  = "slow"
	TagDebug = "debug"
)

// Config is the category filter for one tracing session. Patterns support
// '*' globs, as in "custom.*". An entry in EnabledCategories prefixed with
// '!' is shorthand for a disabled pattern, and is moved to
// DisabledCategories by Normalize.
//
// Matching precedence, first hit wins:
//
//  1. category name matches EnabledCategories -> enabled
//  2. any category tag matches EnabledTags -> enabled
//  3. category name matches DisabledCategories -> disabled
//  4. any category tag matches DisabledTags -> disabled
//  5. category is tagged "slow" or "debug" -> disabled
//  6. EnabledCategories is non-empty -> disabled (an include list is
//     exhaustive)
//  7. otherwise -> enabled
//
// For group categories, a name rule matches if it matches any member.
type Config struct {
	EnabledCategories  []string `json:"enabled_categories,omitempty"`
	DisabledCategories []string `json:"disabled_categories,omitempty"`
	EnabledTags        []string `json:"enabled_tags,omitempty"`
	DisabledTags       []string `json:"disabled_tags,omitempty"`

	normalized bool
}

// ParseConfig deserializes a session config from JSON bytes and normalizes
// it. A malformed config is a returned error, never an assertion: a session
// must not silently proceed with an invalid filter.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse session config: %w", err)
	}
	if err := c.Normalize(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Normalize must be called before the config can be used. It resolves '!'
// negation shorthand and validates every pattern.
func (c *Config) Normalize() error {
	if c.normalized {
		return nil
	}

	var enabled []string
	for _, pattern := range c.EnabledCategories {
		if negated, ok := strings.CutPrefix(pattern, "!"); ok {
			c.DisabledCategories = append(c.DisabledCategories, negated)
			continue
		}
		enabled = append(enabled, pattern)
	}
	c.EnabledCategories = enabled

	for _, list := range [][]string{c.EnabledCategories, c.DisabledCategories, c.EnabledTags, c.DisabledTags} {
		for _, pattern := range list {
			if _, err := path.Match(pattern, "x"); err != nil {
				return fmt.Errorf("pattern %q: %w", pattern, err)
			}
		}
	}

	c.normalized = true
	return nil
}

// String returns an operator-readable representation of the config.
func (c Config) String() string {
	var elems []string

	if len(c.EnabledCategories) > 0 {
		elems = append(elems, fmt.Sprintf("EnabledCategories=%v", c.EnabledCategories))
	}

	if len(c.DisabledCategories) > 0 {
		elems = append(elems, fmt.Sprintf("DisabledCategories=%v", c.DisabledCategories))
	}

	if len(c.EnabledTags) > 0 {
		elems = append(elems, fmt.Sprintf("EnabledTags=%v", c.EnabledTags))
	}

	if len(c.DisabledTags) > 0 {
		elems = append(elems, fmt.Sprintf("DisabledTags=%v", c.DisabledTags))
	}

	if len(elems) <= 0 {
		return "(default)"
	}

	return strings.Join(elems, " ")
}

// Matches reports whether the config wants the given category recorded.
func (c Config) Matches(cat Category) bool {
	members := cat.GroupMembers()

	if matchesAnyName(c.EnabledCategories, members) {
		return true
	}

	if matchesAnyTag(c.EnabledTags, cat.Tags) {
		return true
	}

	if matchesAnyName(c.DisabledCategories, members) {
		return false
	}

	if matchesAnyTag(c.DisabledTags, cat.Tags) {
		return false
	}

	if cat.HasTag(TagSlow) || cat.HasTag(TagDebug) {
		return false
	}

	if len(c.EnabledCategories) > 0 {
		return false
	}

	return true
}

func matchesAnyName(patterns, names []string) bool {
	for _, pattern := range patterns {
		for _, name := range names {
			if ok, err := path.Match(pattern, name); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func matchesAnyTag(patterns, tags []string) bool {
	for _, pattern := range patterns {
		for _, tag := range tags {
			if ok, err := path.Match(pattern, tag); err == nil && ok {
				return true
			}
		}
	}
	return false
}
