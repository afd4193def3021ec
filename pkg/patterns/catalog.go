package patterns

import (
	"fmt"
	"regexp"
	"sync"
)

// Category identifies one attack class.
type Category string

const (
	CategorySystemOverride      Category = "system_override"
	CategoryRoleManipulation    Category = "role_manipulation"
	CategoryPrivilegeEscalation Category = "privilege_escalation"
	CategoryDataExtraction      Category = "data_extraction"
	CategoryJailbreak           Category = "jailbreak"
)

// Categories lists every attack class in stable evaluation order.
var Categories = []Category{
	CategorySystemOverride,
	CategoryRoleManipulation,
	CategoryPrivilegeEscalation,
	CategoryDataExtraction,
	CategoryJailbreak,
}

// Rule holds a compiled regex with a name used in evidence strings.
type Rule struct {
	Name  string
	Regex *regexp.Regexp
}

// Catalog is the single source of truth for detection policy content:
// per-category regex rules, fuzzy variant groups, severity weights, and the
// privilege-escalation keyword list.
type Catalog struct {
	mu       sync.RWMutex
	rules    map[Category][]*Rule
	groups   map[Category][]Group
	weights  map[Category]float64
	keywords []string
}

// global singleton - initialized once at package load
var (
	globalCatalog *Catalog
	initOnce      sync.Once
)

// Get returns the global pattern catalog (singleton).
// Thread-safe and guaranteed to be initialized.
func Get() *Catalog {
	initOnce.Do(func() {
		globalCatalog = NewCatalog()
	})
	return globalCatalog
}

// NewCatalog creates a catalog populated with the default policy content.
// Tests use this to get an isolated catalog they can mutate freely.
func NewCatalog() *Catalog {
	c := &Catalog{
		rules:   make(map[Category][]*Rule),
		groups:  make(map[Category][]Group),
		weights: make(map[Category]float64),
	}

	c.registerSystemOverride()
	c.registerRoleManipulation()
	c.registerPrivilegeEscalation()
	c.registerDataExtraction()
	c.registerJailbreak()

	return c
}

// register adds a case-insensitive regex rule to a category.
// Only called from the register* defaults, where the pattern is a literal.
func (c *Catalog) register(cat Category, name, pattern string) {
	c.rules[cat] = append(c.rules[cat], &Rule{
		Name:  name,
		Regex: regexp.MustCompile(`(?i)` + pattern),
	})
}

// compileRule compiles a rule pattern from untrusted policy input.
func compileRule(cat Category, name, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`(?i)` + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile policy rule %s/%s: %w", cat, name, err)
	}
	return re, nil
}

// Rules returns the compiled regex rules for a category.
// Returns an empty slice if the category has none (never nil).
func (c *Catalog) Rules(cat Category) []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if rules, ok := c.rules[cat]; ok {
		return rules
	}
	return []*Rule{}
}

// FuzzyGroups returns the fuzzy variant groups for a category.
func (c *Catalog) FuzzyGroups(cat Category) []Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.groups[cat]
}

// Weight returns the a-priori severity weight for a category, in [0,1].
func (c *Catalog) Weight(cat Category) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weights[cat]
}

// SetWeight overrides the severity weight for a category.
func (c *Catalog) SetWeight(cat Category, w float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weights[cat] = w
}

// PrivilegeKeywords returns the sensitive-term list used by both the
// privilege-escalation detector and the temporal escalation scan.
func (c *Catalog) PrivilegeKeywords() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keywords
}

// RuleCount returns the number of regex rules in a category.
func (c *Catalog) RuleCount(cat Category) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules[cat])
}
