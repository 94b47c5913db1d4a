/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the on-disk layout of a model declaration file:
//
//	models:
//	  - name: users
//	    primary_key: id
//	    fields:
//	      - {name: id, type: integer, auto_increment: true}
//	      - {name: email, type: string, size: 120, not_null: true, unique: true}
type document struct {
	Models []*Model `yaml:"models"`
}

// Parse decodes and validates model declarations. Models keep file order.
func Parse(data []byte) ([]*Model, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode model declarations: %w", err)
	}
	seen := make(map[string]bool, len(doc.Models))
	for i, m := range doc.Models {
		if m == nil {
			return nil, fmt.Errorf("model #%d: %w", i, ErrInvalidModel)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if seen[m.Name] {
			return nil, &FieldError{Model: m.Name, Err: ErrInvalidModel, Reason: "declared twice"}
		}
		seen[m.Name] = true
	}
	return doc.Models, nil
}

// LoadFile reads model declarations from a YAML file.
func LoadFile(path string) ([]*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file %s: %w", path, err)
	}
	models, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return models, nil
}
