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

	"github.com/tomoncle/repogen/types"
	"github.com/uptrace/bun"
)

// CrudRepository defines the CRUD operations of one model.
type CrudRepository[T any] interface {
	// FindMany returns the rows matching args; nil args selects every row.
	FindMany(ctx context.Context, args *types.FindManyArgs) ([]*T, error)

	// FindUnique returns the single row matching where, or sql.ErrNoRows.
	FindUnique(ctx context.Context, where types.Where) (*T, error)

	// Create inserts data and returns it with generated keys filled in.
	Create(ctx context.Context, data *T) (*T, error)

	// Update writes data to the row matching where (the primary key of data
	// when where is empty). Only columns are written when given. It returns
	// sql.ErrNoRows when no row matched.
	Update(ctx context.Context, where types.Where, data *T, columns ...string) (*T, error)

	// Delete removes the row matching where and returns it.
	Delete(ctx context.Context, where types.Where) (*T, error)

	Count(ctx context.Context, filter *types.QueryFilter) (int, error)

	Upsert(ctx context.Context, fields []string, conflictKeys []string, entity ...*T) error
}

// TransactionRepository defines operations executed within a transaction.
type TransactionRepository[T any] interface {
	// CreateWithTransaction inserts data inside its own transaction, or inside
	// the bound one for a repository returned by WithTx.
	CreateWithTransaction(ctx context.Context, data *T) (*T, error)

	// WithTx returns a copy of the repository bound to tx.
	WithTx(tx bun.Tx) Repository[T]

	// RunInTx runs fn with a transaction-bound repository, committing when fn
	// returns nil and rolling back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	FindPage(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// Repository combines CRUD, pagination, and transactional operations and
// exposes the Bun client for advanced use cases.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]
	TransactionRepository[T]
	ModelName() string
	DB() bun.IDB
	NewSelect() *bun.SelectQuery
}

// ModelRepository is the untyped view of a Repository, resolved by model
// name through a Factory. Results are *T and []*T values of the model type;
// data arguments accept *T or T.
type ModelRepository interface {
	ModelName() string
	New() any
	FindMany(ctx context.Context, args *types.FindManyArgs) (any, error)
	FindUnique(ctx context.Context, where types.Where) (any, error)
	Create(ctx context.Context, data any) (any, error)
	Update(ctx context.Context, where types.Where, data any, columns ...string) (any, error)
	Delete(ctx context.Context, where types.Where) (any, error)
	CreateWithTransaction(ctx context.Context, data any) (any, error)
	Count(ctx context.Context, filter *types.QueryFilter) (int, error)
}
