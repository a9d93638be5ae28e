// Per-category cache policies: TTL and capacity for each cache class, with
// built-in defaults and an optional YAML overlay file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// Policy is the TTL and capacity bound for one cache category.
type Policy struct {
	MaxAge     time.Duration `yaml:"max_age"`
	MaxEntries int           `yaml:"max_entries"`
}

// PolicySet maps every cache category to its policy.
type PolicySet map[domain.Category]Policy

// DefaultPolicies returns the built-in per-category policies. Price data and
// audio turn over daily; preferences and history are long-lived; generic API
// responses are short-lived.
func DefaultPolicies() PolicySet {
	return PolicySet{
		domain.CategoryPriceData:            {MaxAge: 24 * time.Hour, MaxEntries: 500},
		domain.CategoryTransactionHistory:   {MaxAge: 168 * time.Hour, MaxEntries: 1000},
		domain.CategoryUserPreferences:      {MaxAge: 720 * time.Hour, MaxEntries: 100},
		domain.CategoryNegotiationTemplates: {MaxAge: 168 * time.Hour, MaxEntries: 200},
		domain.CategoryAudioAsset:           {MaxAge: 24 * time.Hour, MaxEntries: 50},
		domain.CategoryGenericAPI:           {MaxAge: 1 * time.Hour, MaxEntries: 300},
	}
}

// Validate checks every policy carries a positive TTL and capacity.
func (ps PolicySet) Validate() error {
	for _, cat := range domain.Categories() {
		p, ok := ps[cat]
		if !ok {
			return fmt.Errorf("missing cache policy for category %q", cat)
		}
		if p.MaxAge <= 0 {
			return fmt.Errorf("cache policy %q: max_age must be > 0", cat)
		}
		if p.MaxEntries < 1 {
			return fmt.Errorf("cache policy %q: max_entries must be >= 1", cat)
		}
	}
	return nil
}

// policyFile is the YAML shape of a policy override file:
//
//	categories:
//	  price_data:
//	    max_age: 12h
//	    max_entries: 250
type policyFile struct {
	Categories map[string]policyEntry `yaml:"categories"`
}

type policyEntry struct {
	MaxAge     string `yaml:"max_age,omitempty"`
	MaxEntries int    `yaml:"max_entries,omitempty"`
}

// LoadPolicyFile reads a YAML policy file and overlays it on base. Unknown
// fields are rejected (catches typos); unknown categories are an error.
// A category may override max_age, max_entries, or both; omitted values keep
// the base policy.
func LoadPolicyFile(path string, base PolicySet) (PolicySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache policy file: %w", err)
	}

	var pf policyFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&pf); err != nil {
		return nil, fmt.Errorf("parse cache policy file: %w", err)
	}

	out := make(PolicySet, len(base))
	for k, v := range base {
		out[k] = v
	}
	for name, entry := range pf.Categories {
		cat, err := domain.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("cache policy file: %w", err)
		}
		p := out[cat]
		if entry.MaxAge != "" {
			d, err := time.ParseDuration(entry.MaxAge)
			if err != nil {
				return nil, fmt.Errorf("cache policy %q: bad max_age %q: %w", name, entry.MaxAge, err)
			}
			p.MaxAge = d
		}
		if entry.MaxEntries != 0 {
			p.MaxEntries = entry.MaxEntries
		}
		out[cat] = p
	}
	return out, nil
}
