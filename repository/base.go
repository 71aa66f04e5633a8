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
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/repogen/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// BaseRepository forwards CRUD calls for one model to a Bun client. It
// holds nothing but the model name and the client, which is either the
// database or a transaction.
type BaseRepository[T any] struct {
	db        bun.IDB
	modelName string
}

var _ Repository[struct{}] = (*BaseRepository[struct{}])(nil)

// NewRepository returns a generic repository for the named model.
func NewRepository[T any](db bun.IDB, modelName string) Repository[T] {
	return &BaseRepository[T]{db: db, modelName: modelName}
}

// ModelName returns the name the model was defined under.
func (r *BaseRepository[T]) ModelName() string { return r.modelName }

// DB returns the database or transaction the repository runs on.
func (r *BaseRepository[T]) DB() bun.IDB { return r.db }

func (r *BaseRepository[T]) NewSelect() *bun.SelectQuery {
	return r.db.NewSelect().Model((*T)(nil))
}

func (r *BaseRepository[T]) FindMany(ctx context.Context, args *types.FindManyArgs) ([]*T, error) {
	entities := make([]*T, 0)
	query := r.db.NewSelect().Model(&entities)
	if args != nil {
		applySelectWhere(query, args.Where)
		if args.Filter != nil {
			query.Where(args.Filter.Schema, args.Filter.Args...)
		}
		for _, rel := range args.Relations {
			query.Relation(rel)
		}
		if len(args.OrderBy) > 0 {
			query.Order(args.OrderBy...)
		}
		if args.Skip > 0 {
			query.Offset(args.Skip)
		}
		if args.Take > 0 {
			query.Limit(args.Take)
		}
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *BaseRepository[T]) FindUnique(ctx context.Context, where types.Where) (*T, error) {
	return r.findUnique(ctx, r.db, where)
}

func (r *BaseRepository[T]) findUnique(ctx context.Context, db bun.IDB, where types.Where) (*T, error) {
	if len(where) == 0 {
		return nil, ErrEmptyWhere
	}
	entity := new(T)
	query := db.NewSelect().Model(entity).Limit(1)
	applySelectWhere(query, where)
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *BaseRepository[T]) Create(ctx context.Context, data *T) (*T, error) {
	return r.create(ctx, r.db, data)
}

func (r *BaseRepository[T]) create(ctx context.Context, db bun.IDB, data *T) (*T, error) {
	if _, err := db.NewInsert().Model(data).Exec(ctx); err != nil {
		return nil, err
	}
	return data, nil
}

func (r *BaseRepository[T]) Update(ctx context.Context, where types.Where, data *T, columns ...string) (*T, error) {
	if len(where) == 0 {
		return r.updateByPK(ctx, r.db, data, columns)
	}
	var updated *T
	err := runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		current, err := r.findUnique(ctx, tx, where)
		if err != nil {
			return err
		}
		copyPK(tx, data, current)
		updated, err = r.updateByPK(ctx, tx, data, columns)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *BaseRepository[T]) updateByPK(ctx context.Context, db bun.IDB, data *T, columns []string) (*T, error) {
	query := db.NewUpdate().Model(data).WherePK()
	if len(columns) > 0 {
		query.Column(columns...)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, sql.ErrNoRows
	}
	return data, nil
}

// copyPK sets the primary key fields of dst to those of src.
func copyPK[T any](db bun.IDB, dst, src *T) {
	table := db.Dialect().Tables().Get(reflect.TypeOf(dst).Elem())
	d, s := reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem()
	for _, pk := range table.PKs {
		pk.Value(d).Set(pk.Value(s))
	}
}

func (r *BaseRepository[T]) Delete(ctx context.Context, where types.Where) (*T, error) {
	if len(where) == 0 {
		return nil, ErrEmptyWhere
	}
	var deleted *T
	err := runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		entity, err := r.findUnique(ctx, tx, where)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model(entity).WherePK().Exec(ctx); err != nil {
			return err
		}
		deleted = entity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *BaseRepository[T]) CreateWithTransaction(ctx context.Context, data *T) (*T, error) {
	var created *T
	err := runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = r.create(ctx, tx, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *BaseRepository[T]) WithTx(tx bun.Tx) Repository[T] {
	return &BaseRepository[T]{db: tx, modelName: r.modelName}
}

func (r *BaseRepository[T]) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository[T]) error) error {
	return runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, r.WithTx(tx))
	})
}

func (r *BaseRepository[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	query := r.db.NewSelect().Model((*T)(nil))
	if filter != nil {
		query.Where(filter.Schema, filter.Args...)
	}
	return query.Count(ctx)
}

func (r *BaseRepository[T]) FindPage(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(types.DefaultPage, types.DefaultPageSize)
	}
	entities := make([]*T, 0)
	query := r.db.NewSelect().Model(&entities)
	if f := pageRequest.GetFilter(); f != nil {
		query.Where(f.Schema, f.Args...)
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}
	err = query.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Order(pageRequest.GetOrders()...).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

func (r *BaseRepository[T]) Upsert(ctx context.Context, fields []string, conflictKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	if len(entity) == 0 {
		return nil
	}
	entities := make([]*T, len(entity))
	copy(entities, entity)

	insertQuery := r.db.NewInsert()
	dialect := r.db.Dialect()
	switch {
	case dialect.Features().Has(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, insertQuery, fields, conflictKeys, entities)
	case dialect.Features().Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, insertQuery, fields, entities)
	default:
		return r.upsertFallback(ctx, entities)
	}
}

func (r *BaseRepository[T]) upsertOnDuplicateKey(ctx context.Context, insertQuery *bun.InsertQuery, fields []string, entities []*T) error {
	_, err := onDuplicateKeyQuery(insertQuery, fields, entities).Exec(ctx)
	return err
}

func (r *BaseRepository[T]) upsertOnConflict(ctx context.Context, insertQuery *bun.InsertQuery, fields []string, conflictKeys []string, entities []*T) error {
	_, err := onConflictQuery(insertQuery, fields, conflictKeys, entities).Exec(ctx)
	return err
}

func onDuplicateKeyQuery[T any](insertQuery *bun.InsertQuery, fields []string, entities []*T) *bun.InsertQuery {
	sets := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)*2)
	for _, field := range fields {
		sets = append(sets, "? = VALUES(?)")
		args = append(args, bun.Ident(field), bun.Ident(field))
	}
	return insertQuery.
		Model(&entities).
		On("DUPLICATE KEY UPDATE").
		Set(strings.Join(sets, ", "), args...)
}

func onConflictQuery[T any](insertQuery *bun.InsertQuery, fields []string, conflictKeys []string, entities []*T) *bun.InsertQuery {
	if len(conflictKeys) == 0 {
		conflictKeys = []string{"id"}
	}
	keys := make([]string, 0, len(conflictKeys))
	keyArgs := make([]interface{}, 0, len(conflictKeys))
	for _, k := range conflictKeys {
		keys = append(keys, "?")
		keyArgs = append(keyArgs, bun.Ident(k))
	}
	sets := make([]string, 0, len(fields))
	setArgs := make([]interface{}, 0, len(fields)*2)
	for _, field := range fields {
		sets = append(sets, "? = EXCLUDED.?")
		setArgs = append(setArgs, bun.Ident(field), bun.Ident(field))
	}
	return insertQuery.
		Model(&entities).
		On("CONFLICT ("+strings.Join(keys, ", ")+") DO UPDATE", keyArgs...).
		Set(strings.Join(sets, ", "), setArgs...)
}

func (r *BaseRepository[T]) upsertFallback(ctx context.Context, entities []*T) error {
	return runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		for _, entity := range entities {
			if _, err := tx.NewInsert().Model(entity).Exec(ctx); err != nil {
				if _, updateErr := tx.NewUpdate().Model(entity).WherePK().Exec(ctx); updateErr != nil {
					return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
				}
			}
		}
		return nil
	})
}

func applySelectWhere(query *bun.SelectQuery, where types.Where) {
	for _, col := range where.Columns() {
		if v := where[col]; v == nil {
			query.Where("?TableAlias.? IS NULL", bun.Ident(col))
		} else {
			query.Where("?TableAlias.? = ?", bun.Ident(col), v)
		}
	}
}

// runInTx reuses db when it is already a transaction.
func runInTx(ctx context.Context, db bun.IDB, fn func(ctx context.Context, tx bun.Tx) error) error {
	switch tx := db.(type) {
	case bun.Tx:
		return fn(ctx, tx)
	case *bun.Tx:
		return fn(ctx, *tx)
	}
	return db.RunInTx(ctx, nil, fn)
}
