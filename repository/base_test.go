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
	"errors"
	"strings"
	"testing"

	"github.com/tomoncle/repogen/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID    int64   `bun:"id,pk,autoincrement"`
	Email string  `bun:"email,notnull,unique"`
	Name  string  `bun:"name"`
	Team  *string `bun:"team"`
}

type Post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID     int64  `bun:"id,pk,autoincrement"`
	UserID int64  `bun:"user_id,notnull"`
	Title  string `bun:"title"`
	Author *User  `bun:"rel:belongs-to,join:user_id=id"`
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqlDB, err := sql.Open(sqliteshim.ShimName, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{(*User)(nil), (*Post)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func seedUsers(t *testing.T, repo Repository[User], emails ...string) []*User {
	t.Helper()
	users := make([]*User, 0, len(emails))
	for _, email := range emails {
		u, err := repo.Create(context.Background(), &User{Email: email, Name: strings.Split(email, "@")[0]})
		if err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
		users = append(users, u)
	}
	return users
}

func TestCreateAndFindUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")
	if repo.ModelName() != "User" {
		t.Fatalf("unexpected model name %q", repo.ModelName())
	}

	created, err := repo.Create(ctx, &User{Email: "ada@example.com", Name: "ada"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected generated id")
	}

	got, err := repo.FindUnique(ctx, types.Where{"email": "ada@example.com"})
	if err != nil {
		t.Fatalf("find unique error: %v", err)
	}
	if got.ID != created.ID || got.Name != "ada" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := repo.FindUnique(ctx, types.Where{"email": "nobody@example.com"}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if _, err := repo.FindUnique(ctx, nil); !errors.Is(err, ErrEmptyWhere) {
		t.Fatalf("expected ErrEmptyWhere, got %v", err)
	}
}

func TestCreateDuplicateReturnsDriverError(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")
	seedUsers(t, repo, "dup@example.com")
	if _, err := repo.Create(ctx, &User{Email: "dup@example.com"}); err == nil {
		t.Fatalf("expected unique constraint error")
	}
}

func TestFindMany(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")

	all, err := repo.FindMany(ctx, nil)
	if err != nil {
		t.Fatalf("find many error: %v", err)
	}
	if all == nil || len(all) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", all)
	}

	seedUsers(t, repo, "a@example.com", "b@example.com", "c@example.com", "d@example.com")
	team := "core"
	if _, err := repo.Update(ctx, types.Where{"email": "b@example.com"}, &User{Team: &team}, "team"); err != nil {
		t.Fatalf("update error: %v", err)
	}

	page, err := repo.FindMany(ctx, &types.FindManyArgs{OrderBy: []string{"id DESC"}, Skip: 1, Take: 2})
	if err != nil {
		t.Fatalf("find many error: %v", err)
	}
	if len(page) != 2 || page[0].Email != "c@example.com" || page[1].Email != "b@example.com" {
		t.Fatalf("unexpected ordering: %+v", page)
	}

	teamless, err := repo.FindMany(ctx, &types.FindManyArgs{Where: types.Where{"team": nil}})
	if err != nil {
		t.Fatalf("find many error: %v", err)
	}
	if len(teamless) != 3 {
		t.Fatalf("expected 3 users without team, got %d", len(teamless))
	}

	filtered, err := repo.FindMany(ctx, &types.FindManyArgs{
		Where:  types.Where{"team": "core"},
		Filter: types.NewQueryFilter("email LIKE ?", "b%"),
	})
	if err != nil {
		t.Fatalf("find many error: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Email != "b@example.com" {
		t.Fatalf("unexpected filtered users: %+v", filtered)
	}
}

func TestFindManyRelations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := seedUsers(t, NewRepository[User](db, "User"), "author@example.com")
	posts := NewRepository[Post](db, "Post")
	if _, err := posts.Create(ctx, &Post{UserID: users[0].ID, Title: "hello"}); err != nil {
		t.Fatalf("create post: %v", err)
	}
	got, err := posts.FindMany(ctx, &types.FindManyArgs{Relations: []string{"Author"}})
	if err != nil {
		t.Fatalf("find many error: %v", err)
	}
	if len(got) != 1 || got[0].Author == nil || got[0].Author.Email != "author@example.com" {
		t.Fatalf("relation not loaded: %+v", got)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")
	u := seedUsers(t, repo, "old@example.com")[0]

	u.Name = "renamed"
	if _, err := repo.Update(ctx, nil, u); err != nil {
		t.Fatalf("update by pk error: %v", err)
	}
	got, err := repo.FindUnique(ctx, types.Where{"id": u.ID})
	if err != nil || got.Name != "renamed" {
		t.Fatalf("update not applied: %+v, %v", got, err)
	}

	if _, err := repo.Update(ctx, types.Where{"email": "old@example.com"}, &User{Name: "again"}, "name"); err != nil {
		t.Fatalf("update by where error: %v", err)
	}
	got, _ = repo.FindUnique(ctx, types.Where{"id": u.ID})
	if got.Name != "again" || got.Email != "old@example.com" {
		t.Fatalf("column update touched other columns: %+v", got)
	}

	if _, err := repo.Update(ctx, types.Where{"email": "missing@example.com"}, &User{Name: "x"}, "name"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpdateTouchesOneRow(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")
	users := seedUsers(t, repo, "first@example.com", "second@example.com")

	updated, err := repo.Update(ctx, types.Where{"team": nil}, &User{Name: "zz"}, "name")
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.ID != users[0].ID && updated.ID != users[1].ID {
		t.Fatalf("returned row has no matching id: %+v", updated)
	}
	if n, err := repo.Count(ctx, types.NewQueryFilter("name = ?", "zz")); err != nil || n != 1 {
		t.Fatalf("expected one updated row, count = %d, err = %v", n, err)
	}
	got, err := repo.FindUnique(ctx, types.Where{"id": updated.ID})
	if err != nil || got.Name != "zz" {
		t.Fatalf("returned row was not the updated one: %+v, %v", got, err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")
	seedUsers(t, repo, "gone@example.com", "stay@example.com")

	deleted, err := repo.Delete(ctx, types.Where{"email": "gone@example.com"})
	if err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if deleted.Email != "gone@example.com" || deleted.ID == 0 {
		t.Fatalf("unexpected deleted user: %+v", deleted)
	}
	n, err := repo.Count(ctx, nil)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, err = %v", n, err)
	}

	if _, err := repo.Delete(ctx, types.Where{"email": "gone@example.com"}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if _, err := repo.Delete(ctx, types.Where{}); !errors.Is(err, ErrEmptyWhere) {
		t.Fatalf("expected ErrEmptyWhere, got %v", err)
	}
}

func TestCreateWithTransaction(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")

	created, err := repo.CreateWithTransaction(ctx, &User{Email: "tx@example.com"})
	if err != nil {
		t.Fatalf("create with transaction error: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected generated id")
	}
	if _, err := repo.CreateWithTransaction(ctx, &User{Email: "tx@example.com"}); err == nil {
		t.Fatalf("expected unique constraint error")
	}
	n, _ := repo.Count(ctx, nil)
	if n != 1 {
		t.Fatalf("expected 1 user, got %d", n)
	}
}

func TestRunInTxRollback(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")

	boom := errors.New("boom")
	err := repo.RunInTx(ctx, func(ctx context.Context, tx Repository[User]) error {
		if _, err := tx.Create(ctx, &User{Email: "a@example.com"}); err != nil {
			return err
		}
		// nested transactional calls join the outer transaction
		if _, err := tx.CreateWithTransaction(ctx, &User{Email: "b@example.com"}); err != nil {
			return err
		}
		n, err := tx.Count(ctx, nil)
		if err != nil || n != 2 {
			t.Fatalf("count inside tx = %d, err = %v", n, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	n, err := repo.Count(ctx, nil)
	if err != nil || n != 0 {
		t.Fatalf("expected rollback, count = %d, err = %v", n, err)
	}

	err = repo.RunInTx(ctx, func(ctx context.Context, tx Repository[User]) error {
		_, err := tx.Create(ctx, &User{Email: "c@example.com"})
		return err
	})
	if err != nil {
		t.Fatalf("commit error: %v", err)
	}
	if n, _ := repo.Count(ctx, nil); n != 1 {
		t.Fatalf("expected commit, count = %d", n)
	}
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")
	seedUsers(t, repo, "up@example.com")

	err := repo.Upsert(ctx, []string{"name"}, []string{"email"},
		&User{Email: "up@example.com", Name: "updated"},
		&User{Email: "new@example.com", Name: "inserted"},
	)
	if err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	got, err := repo.FindUnique(ctx, types.Where{"email": "up@example.com"})
	if err != nil || got.Name != "updated" {
		t.Fatalf("upsert did not update: %+v, %v", got, err)
	}
	if n, _ := repo.Count(ctx, nil); n != 2 {
		t.Fatalf("expected 2 users, got %d", n)
	}

	if err := repo.Upsert(ctx, nil, nil, &User{Email: "x@example.com"}); err == nil {
		t.Fatalf("expected error for empty fields")
	}
	if err := repo.Upsert(ctx, []string{"name"}, nil); err != nil {
		t.Fatalf("upsert without entities should be a no-op: %v", err)
	}
}

func TestUpsertQueries(t *testing.T) {
	sqlDB := newTestDB(t).DB
	entities := []*User{{Email: "a@example.com", Name: "a"}}

	mysql := bun.NewDB(sqlDB, mysqldialect.New())
	if !mysql.Dialect().Features().Has(feature.InsertOnDuplicateKey) {
		t.Fatalf("mysql dialect should support ON DUPLICATE KEY")
	}
	got := onDuplicateKeyQuery(mysql.NewInsert(), []string{"name", "team"}, entities).String()
	if want := "ON DUPLICATE KEY UPDATE `name` = VALUES(`name`), `team` = VALUES(`team`)"; !strings.Contains(got, want) {
		t.Fatalf("query %q missing %q", got, want)
	}

	pg := bun.NewDB(sqlDB, pgdialect.New())
	got = onConflictQuery(pg.NewInsert(), []string{"name"}, []string{"email"}, entities).String()
	if want := `ON CONFLICT ("email") DO UPDATE SET "name" = EXCLUDED."name"`; !strings.Contains(got, want) {
		t.Fatalf("query %q missing %q", got, want)
	}
	got = onConflictQuery(pg.NewInsert(), []string{"name"}, nil, entities).String()
	if want := `ON CONFLICT ("id") DO UPDATE`; !strings.Contains(got, want) {
		t.Fatalf("query %q missing %q", got, want)
	}
}

func TestUpsertFallback(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User").(*BaseRepository[User])
	u := seedUsers(t, repo, "fb@example.com")[0]

	err := repo.upsertFallback(ctx, []*User{
		{ID: u.ID, Email: "fb@example.com", Name: "fallback"},
		{Email: "fresh@example.com", Name: "fresh"},
	})
	if err != nil {
		t.Fatalf("upsert fallback error: %v", err)
	}
	got, err := repo.FindUnique(ctx, types.Where{"id": u.ID})
	if err != nil || got.Name != "fallback" {
		t.Fatalf("existing row not updated: %+v, %v", got, err)
	}
	if n, _ := repo.Count(ctx, nil); n != 2 {
		t.Fatalf("expected 2 users, got %d", n)
	}
}

func TestFindPage(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")

	empty, err := repo.FindPage(ctx, nil)
	if err != nil {
		t.Fatalf("find page error: %v", err)
	}
	if empty.Total != 0 || len(empty.Items) != 0 || empty.Page != types.DefaultPage {
		t.Fatalf("unexpected empty page: %+v", empty)
	}

	seedUsers(t, repo, "1@x.io", "2@x.io", "3@x.io", "4@x.io", "5@x.io")
	page, err := repo.FindPage(ctx, types.NewPageRequest(2, 2, nil, []string{"id ASC"}))
	if err != nil {
		t.Fatalf("find page error: %v", err)
	}
	if page.Total != 5 || page.Pages() != 3 || len(page.Items) != 2 || page.Items[0].Email != "3@x.io" {
		t.Fatalf("unexpected page: %+v", page)
	}

	filtered, err := repo.FindPage(ctx, types.NewPageRequest(1, 10, types.NewQueryFilter("email IN (?)", bun.In([]string{"1@x.io", "5@x.io"})), nil))
	if err != nil {
		t.Fatalf("find page error: %v", err)
	}
	if filtered.Total != 2 || len(filtered.Items) != 2 {
		t.Fatalf("unexpected filtered page: %+v", filtered)
	}
}

func TestNewSelect(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository[User](newTestDB(t), "User")
	seedUsers(t, repo, "sel@example.com")

	var emails []string
	if err := repo.NewSelect().Column("email").Scan(ctx, &emails); err != nil {
		t.Fatalf("select error: %v", err)
	}
	if len(emails) != 1 || emails[0] != "sel@example.com" {
		t.Fatalf("unexpected emails: %v", emails)
	}
}
