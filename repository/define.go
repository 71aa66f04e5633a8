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

package repository

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/tomoncle/repogen/database"
	"github.com/uptrace/bun"
)

var defaultRegistry = NewRegistry(database.DefaultModelRegistry())

type builderFunc func(db bun.IDB) ModelRepository

// Registry pairs the database model registry with the repository builders
// of every model defined through it.
type Registry struct {
	models   database.ModelRegistry
	builders map[string]builderFunc
	mutex    sync.RWMutex
}

// NewRegistry returns a registry that records its models in models. A nil
// models uses a fresh database.ModelRegistry.
func NewRegistry(models database.ModelRegistry) *Registry {
	if models == nil {
		models = database.NewModelRegistry()
	}
	return &Registry{models: models, builders: make(map[string]builderFunc)}
}

// DefaultRegistry returns the registry Define uses when no WithRegistry
// option is given. Its models are the ones database.InitDB migrates.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Models returns the underlying database model registry.
func (r *Registry) Models() database.ModelRegistry {
	return r.models
}

// Names returns the defined model names ordered by priority, then by name.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.builders))
	for _, m := range r.models.Models() {
		if _, ok := r.builders[m.Name()]; ok {
			names = append(names, m.Name())
		}
	}
	return names
}

func (r *Registry) builder(name string) (builderFunc, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	b, ok := r.builders[name]
	return b, ok
}

func (r *Registry) nameOf(t reflect.Type) (string, bool) {
	m, ok := r.models.LookupType(t)
	if !ok {
		return "", false
	}
	if _, ok := r.builder(m.Name()); !ok {
		return "", false
	}
	return m.Name(), true
}

type defineOptions struct {
	priority int
	registry *Registry
}

// DefineOption customizes Define and Register.
type DefineOption func(*defineOptions)

// WithPriority sets the table creation order of the model; lower runs first.
func WithPriority(priority int) DefineOption {
	return func(o *defineOptions) { o.priority = priority }
}

// WithRegistry records the model in r instead of DefaultRegistry.
func WithRegistry(r *Registry) DefineOption {
	return func(o *defineOptions) { o.registry = r }
}

// Definition is the metadata attached to the model type T. It satisfies
// database.SQLModel so migrations can create its table.
type Definition[T any] struct {
	name     string
	priority int
}

var _ database.SQLModel = (*Definition[struct{}])(nil)

func (d *Definition[T]) Name() string { return d.name }

func (d *Definition[T]) Priority() int { return d.priority }

// Instance returns a new zero *T for Bun.
func (d *Definition[T]) Instance() interface{} { return new(T) }

// Repository returns a typed repository for T over db.
func (d *Definition[T]) Repository(db bun.IDB) Repository[T] {
	return NewRepository[T](db, d.name)
}

// Register attaches name to T in the registry chosen by opts. It fails when
// the name or the type is already taken.
func Register[T any](name string, opts ...DefineOption) (*Definition[T], error) {
	o := defineOptions{registry: defaultRegistry}
	for _, opt := range opts {
		opt(&o)
	}
	if t := reflect.TypeOf((*T)(nil)).Elem(); t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model %s: %s is not a struct", name, t)
	}

	def := &Definition[T]{name: name, priority: o.priority}
	reg := o.registry
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	if err := reg.models.Register(def); err != nil {
		return nil, err
	}
	reg.builders[name] = func(db bun.IDB) ModelRepository {
		return &anyRepository[T]{repo: def.Repository(db)}
	}
	return def, nil
}

// Define is Register for package-level variables. It panics on error.
//
//	var Users = repository.Define[User]("User")
func Define[T any](name string, opts ...DefineOption) *Definition[T] {
	def, err := Register[T](name, opts...)
	if err != nil {
		panic("repository: Define: " + err.Error())
	}
	return def
}
