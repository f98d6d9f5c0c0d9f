// Package filter applies output-time tag filtering to the objects a
// region's Writer is about to emit. Membership (what belongs to a
// region) is decided entirely by internal/softcut against
// internal/region's predicates; filter only decides which tags (or
// whether the whole object) survive into the written extract, via an
// include/exclude/require_any rule set.
package filter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk tag-filter configuration, one rule set per
// OSM object type. A nil section means "no filtering" for that type.
type Config struct {
	Nodes     *Rules `yaml:"nodes,omitempty"`
	Ways      *Rules `yaml:"ways,omitempty"`
	Relations *Rules `yaml:"relations,omitempty"`
}

// Rules defines filtering for one object type.
type Rules struct {
	// Include specifies tag keys/values that, if present, keep the
	// object. Empty means no include constraint (everything passes).
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude specifies tag keys/values that drop the object, checked
	// after Include.
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny requires at least one of these keys to be present.
	RequireAny []string `yaml:"require_any,omitempty"`
	// DropTags removes these tag keys from the object before writing,
	// without affecting whether the object itself is kept.
	DropTags []string `yaml:"drop_tags,omitempty"`
}

// Load reads a tag-filter configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse filter YAML: %w", err)
	}
	return &cfg, nil
}

// Default returns a Config that keeps every object and every tag.
func Default() *Config { return &Config{} }

// TagFilter is a compiled Rules ready to evaluate tag maps.
type TagFilter struct {
	rules *Rules
}

// ForNodes, ForWays and ForRelations build a TagFilter for their
// respective object type from cfg, defaulting to "keep everything"
// when the relevant section is nil. cfg itself must not be nil; use
// Default() for a config with no rules.
func (c *Config) ForNodes() *TagFilter     { return &TagFilter{rules: c.Nodes} }
func (c *Config) ForWays() *TagFilter      { return &TagFilter{rules: c.Ways} }
func (c *Config) ForRelations() *TagFilter { return &TagFilter{rules: c.Relations} }

// Keep reports whether an object with the given tags should be
// written at all.
func (f *TagFilter) Keep(tags map[string]string) bool {
	if f.rules == nil {
		return true
	}
	r := f.rules

	if len(r.RequireAny) > 0 {
		found := false
		for _, key := range r.RequireAny {
			if _, ok := tags[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(r.Include) > 0 {
		matched := false
		for key, values := range r.Include {
			tagValue, ok := tags[key]
			if !ok {
				continue
			}
			if len(values) == 0 {
				matched = true
				break
			}
			for _, v := range values {
				if v == tagValue || v == "*" {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(r.Exclude) > 0 {
		for key, values := range r.Exclude {
			tagValue, ok := tags[key]
			if !ok {
				continue
			}
			if len(values) == 0 {
				return false
			}
			for _, v := range values {
				if v == tagValue || v == "*" {
					return false
				}
			}
		}
	}

	return true
}

// Strip removes every drop_tags key from tags in place and returns it.
func (f *TagFilter) Strip(tags map[string]string) map[string]string {
	if f.rules == nil || len(f.rules.DropTags) == 0 {
		return tags
	}
	for _, key := range f.rules.DropTags {
		delete(tags, key)
	}
	return tags
}

// Active reports whether this filter has any rule at all, so callers
// can skip a tags-map allocation entirely when it doesn't.
func (f *TagFilter) Active() bool {
	if f.rules == nil {
		return false
	}
	r := f.rules
	return len(r.Include) > 0 || len(r.Exclude) > 0 || len(r.RequireAny) > 0 || len(r.DropTags) > 0
}
