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
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = NewModelRegistry()

// SQLModel is a named database model. Instance returns a struct pointer
// compatible with Bun, and Priority controls ordering when creating tables
// (lower values first).
type SQLModel interface {
	Name() string
	Instance() interface{}
	Priority() int
}

// ModelRegistry stores SQL models by name and exposes them in a
// deterministic order.
type ModelRegistry interface {
	Register(model SQLModel) error
	Lookup(name string) (SQLModel, bool)
	LookupType(t reflect.Type) (SQLModel, bool)
	Models() []SQLModel
}

type modelRegistry struct {
	models []SQLModel
	byName map[string]SQLModel
	byType map[reflect.Type]SQLModel
	mutex  sync.RWMutex
}

// NewModelRegistry returns an empty registry.
func NewModelRegistry() ModelRegistry {
	return &modelRegistry{
		models: make([]SQLModel, 0),
		byName: make(map[string]SQLModel),
		byType: make(map[reflect.Type]SQLModel),
	}
}

func (r *modelRegistry) Register(model SQLModel) error {
	if model == nil || model.Name() == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	t := modelType(model.Instance())
	if t == nil {
		return fmt.Errorf("model %s has no instance", model.Name())
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, dup := r.byName[model.Name()]; dup {
		return fmt.Errorf("model %s already registered", model.Name())
	}
	if prev, dup := r.byType[t]; dup {
		return fmt.Errorf("type %s already registered as model %s", t, prev.Name())
	}
	r.models = append(r.models, model)
	r.byName[model.Name()] = model
	r.byType[t] = model
	return nil
}

func (r *modelRegistry) Lookup(name string) (SQLModel, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

func (r *modelRegistry) LookupType(t reflect.Type) (SQLModel, bool) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	m, ok := r.byType[t]
	return m, ok
}

// Models returns registered models sorted by priority, then by name.
func (r *modelRegistry) Models() []SQLModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]SQLModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority() != result[j].Priority() {
			return result[i].Priority() < result[j].Priority()
		}
		return result[i].Name() < result[j].Name()
	})
	return result
}

type ModelAdapter struct {
	name     string
	instance interface{}
	priority int
}

// NewModelAdapter wraps a name, struct instance and priority into an SQLModel.
func NewModelAdapter(name string, instance interface{}, priority int) SQLModel {
	return &ModelAdapter{
		name:     name,
		instance: instance,
		priority: priority,
	}
}

func (a *ModelAdapter) Name() string { return a.name }

// Instance returns the underlying struct used for table creation.
func (a *ModelAdapter) Instance() interface{} {
	return a.instance
}

// Priority returns the model's ordering value; lower values run earlier.
func (a *ModelAdapter) Priority() int {
	return a.priority
}

// DefaultModelRegistry returns the process-wide registry.
func DefaultModelRegistry() ModelRegistry {
	return defaultRegistry
}

// GetRegisteredModels returns all models registered in the default registry
// sorted by ascending priority.
func GetRegisteredModels() []SQLModel {
	return defaultRegistry.Models()
}

// RegisteredModel adds a model to the default registry.
func RegisteredModel(model SQLModel) error {
	return defaultRegistry.Register(model)
}

// ModelInstances returns the Bun instances of the given models.
func ModelInstances(models []SQLModel) []interface{} {
	modelInstances := make([]interface{}, len(models))
	for i, model := range models {
		modelInstances[i] = model.Instance()
	}
	return modelInstances
}

func RegisteredModelInstances() []interface{} {
	return ModelInstances(GetRegisteredModels())
}

func modelType(instance interface{}) reflect.Type {
	if instance == nil {
		return nil
	}
	t := reflect.TypeOf(instance)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
