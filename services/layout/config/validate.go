// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianLayout/services/layout/calculators"
	"github.com/AleutianAI/AleutianLayout/services/layout/units"
)

// configValidate is the validator instance for configuration structs.
var configValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and cross-field rules.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig describing every problem found, or nil.
func (c Config) Validate() error {
	var problems []string

	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	for _, f := range units.AllFamilies {
		if err := c.Constraints.For(f).Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("constraints.%s: %v", f, err))
		}
	}

	seen := make(map[string]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		if s.ID != "" && seen[s.ID] {
			problems = append(problems, fmt.Sprintf("strategy %s declared twice", s.ID))
		}
		seen[s.ID] = true

		spec, err := s.Spec()
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if _, err := calculators.NewLookup(spec); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// LookupSpecs returns the parsed declared strategies of a family. It
// assumes the config has been validated.
func (c Config) LookupSpecs(f units.Family) []calculators.LookupSpec {
	var out []calculators.LookupSpec
	for _, s := range c.Strategies {
		spec, err := s.Spec()
		if err != nil || spec.Family != f {
			continue
		}
		out = append(out, spec)
	}
	return out
}
