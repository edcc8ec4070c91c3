// Copyright 2025 Certen Protocol

package rules

import "fmt"

// Registry maps ruleId -> Rule. Registration happens at startup only;
// lookups afterward are read-mostly.
type Registry struct {
	byID  map[string]Rule
	order []string
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Rule)}
}

// Register adds a rule. Registering the same id twice is a programmer
// error and panics.
func (r *Registry) Register(rule Rule) {
	id := rule.ID()
	if _, exists := r.byID[id]; exists {
		panic(fmt.Sprintf("rules: duplicate rule id %q", id))
	}
	r.byID[id] = rule
	r.order = append(r.order, id)
}

// Get looks up a rule by id.
func (r *Registry) Get(id string) (Rule, bool) {
	rule, ok := r.byID[id]
	return rule, ok
}

// All returns every registered rule in registration order.
func (r *Registry) All() []Rule {
	out := make([]Rule, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// GetEnabled returns rules with EnabledByDefault() == true, in
// registration order.
func (r *Registry) GetEnabled() []Rule {
	out := make([]Rule, 0, len(r.order))
	for _, id := range r.order {
		if rule := r.byID[id]; rule.EnabledByDefault() {
			out = append(out, rule)
		}
	}
	return out
}
