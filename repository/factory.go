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
	"context"
	"fmt"
	"reflect"

	"github.com/tomoncle/repogen/database"
	"github.com/tomoncle/repogen/types"
	"github.com/uptrace/bun"
)

// Factory builds repositories for models defined in a Registry.
type Factory struct {
	db       bun.IDB
	registry *Registry
	logger   database.Logger
}

// FactoryOption customizes NewFactory.
type FactoryOption func(*Factory)

// WithModelRegistry resolves names against r instead of DefaultRegistry.
func WithModelRegistry(r *Registry) FactoryOption {
	return func(f *Factory) { f.registry = r }
}

// WithLogger sets the logger used for lookup messages. It defaults to
// database.GetLogger().
func WithLogger(logger database.Logger) FactoryOption {
	return func(f *Factory) { f.logger = logger }
}

// NewFactory returns a factory whose repositories run on db. Lookups on a
// factory built over a nil db fail with database.ErrNotInitialized.
func NewFactory(db bun.IDB, opts ...FactoryOption) *Factory {
	f := &Factory{db: db, registry: defaultRegistry}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = database.GetLogger()
	}
	return f
}

// DB returns the client the factory's repositories run on.
func (f *Factory) DB() bun.IDB { return f.db }

func (f *Factory) ready() error {
	switch db := f.db.(type) {
	case nil:
		return database.ErrNotInitialized
	case *bun.DB:
		if db == nil {
			return database.ErrNotInitialized
		}
	}
	return nil
}

// Names lists the models the factory can build.
func (f *Factory) Names() []string {
	return f.registry.Names()
}

// Get returns the repository of the model registered under name.
func (f *Factory) Get(name string) (ModelRepository, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	build, ok := f.registry.builder(name)
	if !ok {
		f.logger.Warn("repository lookup failed", "model", name)
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	f.logger.Debug("repository resolved", "model", name)
	return build(f.db), nil
}

// RunInTx calls fn with a factory bound to a single transaction. The
// transaction commits when fn returns nil.
func (f *Factory) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Factory) error) error {
	if err := f.ready(); err != nil {
		return err
	}
	return runInTx(ctx, f.db, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Factory{db: tx, registry: f.registry, logger: f.logger})
	})
}

// For returns the typed repository of T, which must have been defined in the
// factory's registry.
func For[T any](f *Factory) (Repository[T], error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	name, ok := f.registry.nameOf(t)
	if !ok {
		return nil, fmt.Errorf("%w: type %s", ErrUnknownModel, t)
	}
	return NewRepository[T](f.db, name), nil
}

// MustFor is For that panics when T is not defined.
func MustFor[T any](f *Factory) Repository[T] {
	repo, err := For[T](f)
	if err != nil {
		panic(err)
	}
	return repo
}

// anyRepository erases T from a Repository.
type anyRepository[T any] struct {
	repo Repository[T]
}

var _ ModelRepository = (*anyRepository[struct{}])(nil)

func (a *anyRepository[T]) ModelName() string { return a.repo.ModelName() }

func (a *anyRepository[T]) New() any { return new(T) }

func (a *anyRepository[T]) cast(data any) (*T, error) {
	switch v := data.(type) {
	case *T:
		if v == nil {
			break
		}
		return v, nil
	case T:
		return &v, nil
	}
	return nil, fmt.Errorf("%w: %s got %T", ErrModelType, a.repo.ModelName(), data)
}

func (a *anyRepository[T]) FindMany(ctx context.Context, args *types.FindManyArgs) (any, error) {
	items, err := a.repo.FindMany(ctx, args)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (a *anyRepository[T]) FindUnique(ctx context.Context, where types.Where) (any, error) {
	item, err := a.repo.FindUnique(ctx, where)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (a *anyRepository[T]) Create(ctx context.Context, data any) (any, error) {
	entity, err := a.cast(data)
	if err != nil {
		return nil, err
	}
	item, err := a.repo.Create(ctx, entity)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (a *anyRepository[T]) Update(ctx context.Context, where types.Where, data any, columns ...string) (any, error) {
	entity, err := a.cast(data)
	if err != nil {
		return nil, err
	}
	item, err := a.repo.Update(ctx, where, entity, columns...)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (a *anyRepository[T]) Delete(ctx context.Context, where types.Where) (any, error) {
	item, err := a.repo.Delete(ctx, where)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (a *anyRepository[T]) CreateWithTransaction(ctx context.Context, data any) (any, error) {
	entity, err := a.cast(data)
	if err != nil {
		return nil, err
	}
	item, err := a.repo.CreateWithTransaction(ctx, entity)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (a *anyRepository[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	return a.repo.Count(ctx, filter)
}
