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

package repogen

import (
	"context"

	"github.com/tomoncle/repogen/database"
	"github.com/tomoncle/repogen/repository"
	"github.com/tomoncle/repogen/types"
	"github.com/uptrace/bun"
)

type Service[T any] interface {
	// Get returns the entity matching where.
	Get(ctx context.Context, where types.Where) (*T, error)

	// List returns entities narrowed by args.
	List(ctx context.Context, args *types.FindManyArgs) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Count returns the number of entities matching filter.
	Count(ctx context.Context, filter *types.QueryFilter) (int, error)

	// Save inserts a new entity.
	Save(ctx context.Context, model *T) (*T, error)

	// SaveWithTransaction inserts a new entity inside a transaction.
	SaveWithTransaction(ctx context.Context, model *T) (*T, error)

	// SaveOrUpdate upserts entities based on fields and conflict keys.
	SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, model ...*T) error

	// Update modifies the entity matching where, or by primary key when
	// where is empty.
	Update(ctx context.Context, where types.Where, model *T, columns ...string) (*T, error)

	// Delete removes the entity matching where and returns it.
	Delete(ctx context.Context, where types.Where) (*T, error)

	// Transaction runs fn with a repository bound to one transaction.
	Transaction(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error

	// SelectBuilder returns a Bun select query builder for the entity.
	SelectBuilder() *bun.SelectQuery
}

type baseServiceImpl[T any] struct {
	def *repository.Definition[T]
}

// NewService returns a Service for a model defined with repository.Define,
// backed by the global database connection. The connection is looked up on
// every call, so services can be declared before database.InitDB runs and
// keep working after the database is re-initialized. Calls made while no
// database is initialized fail with database.ErrNotInitialized.
func NewService[T any](def *repository.Definition[T]) Service[T] {
	return &baseServiceImpl[T]{def: def}
}

// DefaultFactory returns a repository factory over the global database
// connection and the default model registry.
func DefaultFactory() (*repository.Factory, error) {
	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	return repository.NewFactory(db), nil
}

// ByName returns the untyped repository of the named model over the global
// database connection.
func ByName(name string) (repository.ModelRepository, error) {
	f, err := DefaultFactory()
	if err != nil {
		return nil, err
	}
	return f.Get(name)
}

func (s *baseServiceImpl[T]) baseRepo() (repository.Repository[T], error) {
	db, err := database.DB()
	if err != nil {
		return nil, err
	}
	return s.def.Repository(db), nil
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, where types.Where) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.FindUnique(ctx, where)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, args *types.FindManyArgs) ([]*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.FindMany(ctx, args)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.FindPage(ctx, page)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return 0, err
	}
	return repo.Count(ctx, filter)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model *T) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.Create(ctx, model)
}

func (s *baseServiceImpl[T]) SaveWithTransaction(ctx context.Context, model *T) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.CreateWithTransaction(ctx, model)
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, model ...*T) error {
	repo, err := s.baseRepo()
	if err != nil {
		return err
	}
	return repo.Upsert(ctx, fields, conflictKeys, model...)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, where types.Where, model *T, columns ...string) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.Update(ctx, where, model, columns...)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, where types.Where) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.Delete(ctx, where)
}

func (s *baseServiceImpl[T]) Transaction(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error {
	repo, err := s.baseRepo()
	if err != nil {
		return err
	}
	return repo.RunInTx(ctx, fn)
}

// SelectBuilder panics with database.ErrNotInitialized when no database is
// initialized.
func (s *baseServiceImpl[T]) SelectBuilder() *bun.SelectQuery {
	repo, err := s.baseRepo()
	if err != nil {
		panic(err)
	}
	return repo.NewSelect()
}
