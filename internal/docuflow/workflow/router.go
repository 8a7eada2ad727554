// Package workflow routes classified text to actions through a YAML rule
// table and executes the chosen action.
package workflow

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Condition gates a rule.  Both fields are optional; set fields must all
// match for the rule to fire.
type Condition struct {
	Classification  string   `yaml:"classification,omitempty"`
	KeywordContains []string `yaml:"keyword_contains,omitempty"`
}

// Route is the decision a matched rule produces.
type Route struct {
	Action string `yaml:"action"`
	Target string `yaml:"target,omitempty"`
}

type Rule struct {
	Name  string    `yaml:"name,omitempty"`
	When  Condition `yaml:"when"`
	Route Route     `yaml:"route"`
}

type Rules struct {
	Routes       []Rule `yaml:"routes"`
	DefaultRoute Route  `yaml:"default_route"`
}

// DefaultRules is the built-in table used when no rules file is configured.
func DefaultRules() Rules {
	return Rules{
		Routes: []Rule{
			{
				Name:  "urgent-to-queue",
				When:  Condition{Classification: "urgent"},
				Route: Route{Action: ActionQueue},
			},
			{
				Name:  "payments-tagged",
				When:  Condition{Classification: "payment_request"},
				Route: Route{Action: ActionTag, Target: "finance"},
			},
		},
		DefaultRoute: Route{Action: ActionLog},
	}
}

// LoadRules reads a rule table from a YAML file.  An empty path returns the
// built-in default table.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules file: %w", err)
	}
	if r.DefaultRoute.Action == "" {
		r.DefaultRoute.Action = ActionLog
	}
	return r, nil
}

// Router matches (classification, text) against a rule table.  Matching is
// deterministic: first rule whose conditions all hold wins, otherwise the
// default route.  The table can be swapped at runtime via Reload (behind
// the manage_rules capability).
type Router struct {
	mu    sync.RWMutex
	rules Rules
}

func NewRouter(rules Rules) *Router {
	return &Router{rules: rules}
}

func (r *Router) Route(classification, text string) Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	textLower := strings.ToLower(text)

	for _, rule := range r.rules.Routes {
		if rule.When.Classification != "" && rule.When.Classification != classification {
			continue
		}
		if len(rule.When.KeywordContains) > 0 && !containsAny(textLower, rule.When.KeywordContains) {
			continue
		}
		return rule.Route
	}
	return r.rules.DefaultRoute
}

func (r *Router) Reload(rules Rules) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = rules
}

func containsAny(textLower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(textLower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
