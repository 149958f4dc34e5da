// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robsotonet/petlovecommunity-core/services/gateway/transaction"
)

// policyFile is the on-disk shape of the retry policy document:
//
//	policies:
//	  booking:
//	    maxRetries: 5
//	    baseDelay: 2s
//	    maxDelay: 32s
type policyFile struct {
	Policies map[transaction.Type]transaction.Policy `yaml:"policies"`
}

// LoadPolicies reads a retry policy YAML file. Types absent from the
// file keep their compiled-in defaults; the caller merges via
// PolicyTable.Replace.
func LoadPolicies(path string) (map[transaction.Type]transaction.Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}

	var doc policyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if len(doc.Policies) == 0 {
		return nil, fmt.Errorf("policy file %s: no policies defined", path)
	}

	merged := transaction.DefaultPolicies()
	for typ, p := range doc.Policies {
		merged[typ] = p
	}
	return merged, nil
}
