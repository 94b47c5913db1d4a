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

package database

import (
	"sort"
	"sync"

	"github.com/tomoncle/recordstore/model"
)

var defaultRegistry = newModelRegistry()

// SQLModel is a model declaration with its creation order. Lower priorities
// are created first.
type SQLModel interface {
	Instance() *model.Model
	Priority() int
}

// ModelRegistry stores SQL models and exposes them in a deterministic order.
type ModelRegistry interface {
	Register(model SQLModel)
	Models() []SQLModel
	Lookup(name string) (*model.Model, bool)
}

type modelRegistry struct {
	models []SQLModel
	mutex  sync.RWMutex
}

func newModelRegistry() ModelRegistry {
	return &modelRegistry{
		models: make([]SQLModel, 0),
	}
}

// Register adds model, replacing an earlier registration of the same table.
func (r *modelRegistry) Register(m SQLModel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i, existing := range r.models {
		if existing.Instance().Name == m.Instance().Name {
			r.models[i] = m
			return
		}
	}
	r.models = append(r.models, m)
}

func (r *modelRegistry) Models() []SQLModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]SQLModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

func (r *modelRegistry) Lookup(name string) (*model.Model, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for _, m := range r.models {
		if m.Instance().Name == name {
			return m.Instance(), true
		}
	}
	return nil, false
}

type ModelAdapter struct {
	instance *model.Model
	priority int
}

// NewModelAdapter wraps a model declaration and priority into an SQLModel.
func NewModelAdapter(instance *model.Model, priority int) SQLModel {
	return &ModelAdapter{
		instance: instance,
		priority: priority,
	}
}

func (a *ModelAdapter) Instance() *model.Model {
	return a.instance
}

// Priority returns the model's ordering value; lower values run earlier.
func (a *ModelAdapter) Priority() int {
	return a.priority
}

// RegisterModel adds m to the default registry.
func RegisterModel(m *model.Model, priority int) {
	defaultRegistry.Register(NewModelAdapter(m, priority))
}

// LookupModel finds a registered model by table name.
func LookupModel(name string) (*model.Model, bool) {
	return defaultRegistry.Lookup(name)
}

// GetRegisteredModels returns all registered models sorted by ascending
// priority.
func GetRegisteredModels() []*model.Model {
	registered := defaultRegistry.Models()
	models := make([]*model.Model, len(registered))
	for i, m := range registered {
		models[i] = m.Instance()
	}
	return models
}
