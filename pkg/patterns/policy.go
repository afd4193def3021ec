package patterns

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the on-disk override format. Every field is optional: absent
// fields leave the built-in defaults untouched.
//
//	weights:
//	  jailbreak: 0.99
//	extra_keywords: [token, bearer]
//	extra_rules:
//	  data_extraction:
//	    - name: print_config
//	      pattern: 'print\s+(the|your)\s+config'
type Policy struct {
	Weights       map[string]float64      `yaml:"weights"`
	ExtraKeywords []string                `yaml:"extra_keywords"`
	ExtraRules    map[string][]PolicyRule `yaml:"extra_rules"`
}

// PolicyRule is one user-supplied regex rule.
type PolicyRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// LoadPolicy reads a YAML policy file and applies it to the catalog.
// Unknown category names and invalid regexes are hard errors: a half-applied
// policy is worse than no policy.
func (c *Catalog) LoadPolicy(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}

	return c.Apply(&p)
}

// Apply merges a parsed policy into the catalog. Everything is validated
// before the first mutation, so a rejected policy leaves the catalog as it
// was.
func (c *Catalog) Apply(p *Policy) error {
	weights := make(map[Category]float64, len(p.Weights))
	for name, w := range p.Weights {
		cat, err := parseCategory(name)
		if err != nil {
			return err
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("weight for %s out of range: %v", name, w)
		}
		weights[cat] = w
	}

	type compiledRule struct {
		cat  Category
		rule *Rule
	}
	var compiled []compiledRule
	for name, rules := range p.ExtraRules {
		cat, err := parseCategory(name)
		if err != nil {
			return err
		}
		for _, r := range rules {
			if r.Name == "" {
				return fmt.Errorf("policy rule for %s has no name", name)
			}
			re, err := compileRule(cat, r.Name, r.Pattern)
			if err != nil {
				return err
			}
			compiled = append(compiled, compiledRule{cat: cat, rule: &Rule{Name: r.Name, Regex: re}})
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for cat, w := range weights {
		c.weights[cat] = w
	}
	for _, cr := range compiled {
		c.rules[cr.cat] = append(c.rules[cr.cat], cr.rule)
	}
	c.keywords = append(c.keywords, p.ExtraKeywords...)

	return nil
}

func parseCategory(name string) (Category, error) {
	for _, cat := range Categories {
		if string(cat) == name {
			return cat, nil
		}
	}
	return "", fmt.Errorf("unknown attack category %q", name)
}
