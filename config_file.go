package goIDP

import (
	"fmt"
	"os"

	"github.com/MrEthical07/goIDP/scope"
	"gopkg.in/yaml.v3"
)

type scopeFile struct {
	Scopes []scope.Information `yaml:"scopes"`
}

type ageRateFile struct {
	Buckets []AgeRateBucket `yaml:"age_rates"`
}

// LoadScopeTable reads a YAML scope table:
//
//	scopes:
//	  - name: user.read
//	    description: Read your account profile
//	    min_level: 4
//	    allow_public: true
func LoadScopeTable(path string) ([]scope.Information, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scope table: %w", err)
	}
	var f scopeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scope table: %w", err)
	}
	if len(f.Scopes) == 0 {
		return nil, fmt.Errorf("scope table %s defines no scopes", path)
	}
	return f.Scopes, nil
}

// LoadAgeRateTable reads a YAML age-rate table:
//
//	age_rates:
//	  - {min: 0, max: 11, rate: A}
//	  - {min: 18, rate: Z}
//
// Ordering matters: the first matching bucket wins.
func LoadAgeRateTable(path string) ([]AgeRateBucket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read age rate table: %w", err)
	}
	var f ageRateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse age rate table: %w", err)
	}
	if len(f.Buckets) == 0 {
		return nil, fmt.Errorf("age rate table %s defines no buckets", path)
	}
	return f.Buckets, nil
}
