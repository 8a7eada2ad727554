package security

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPolicy reads a role table from a YAML file.  An empty path returns
// the built-in default policy.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	if err := validatePolicy(p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func validatePolicy(p Policy) error {
	if len(p.Roles) == 0 {
		return fmt.Errorf("policy defines no roles")
	}
	for name, rp := range p.Roles {
		if name == "" {
			return fmt.Errorf("policy contains a role with an empty name")
		}
		for op := range rp.Scopes {
			if !knownOperation(op) {
				return fmt.Errorf("role %q: unknown operation %q in scopes", name, op)
			}
		}
	}
	return nil
}
