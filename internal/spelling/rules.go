package spelling

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"podsearch/internal/services"
)

// RuleFile is the on-disk rule layout:
//
//	global:
//	  - correct: Kubernetes
//	    misspellings: [cooper netties, kubernetties]
//	collections:
//	  my-show:
//	    - correct: Jane Doe
//	      misspellings: [jane dough]
type RuleFile struct {
	Global      []Rule            `yaml:"global"`
	Collections map[string][]Rule `yaml:"collections"`
}

// For returns the effective rules for collection.
func (f *RuleFile) For(collection string) []Rule {
	if f == nil {
		return nil
	}
	return Merge(f.Collections[collection], f.Global)
}

// LoadRules reads a rule file. An empty path yields an empty rule set.
func LoadRules(path string) (*RuleFile, error) {
	if path == "" {
		return &RuleFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "spelling", "load rules", fmt.Sprintf("rules file %s not found", path), err)
		}
		return nil, fmt.Errorf("reading spelling rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rule data.
func ParseRules(data []byte) (*RuleFile, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "spelling", "parse rules", "invalid YAML", err)
	}
	for i, r := range file.Global {
		if r.Correct == "" {
			return nil, services.Wrap(services.ErrConfiguration, "spelling", "parse rules", fmt.Sprintf("global rule %d has no correct spelling", i), nil)
		}
	}
	for name, rules := range file.Collections {
		for i, r := range rules {
			if r.Correct == "" {
				return nil, services.Wrap(services.ErrConfiguration, "spelling", "parse rules", fmt.Sprintf("collection %s rule %d has no correct spelling", name, i), nil)
			}
		}
	}
	return &file, nil
}
