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

package codegen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomoncle/repogen/repository"
	"github.com/uptrace/bun"
)

const modelsSource = `package models

import (
	"time"

	orm "github.com/uptrace/bun"
)

type User struct {
	orm.BaseModel ` + "`bun:\"table:app_users,alias:u\"`" + `

	ID        int64
	CreatedAt time.Time
}

type UserProfile struct {
	orm.BaseModel

	ID int64
}

type hidden struct {
	orm.BaseModel
}

type Plain struct {
	Name string
}
`

func writeModels(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "models.go"), []byte(modelsSource), 0644); err != nil {
		t.Fatalf("write models: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "models_test.go"), []byte("package models\n\nimport \"github.com/uptrace/bun\"\n\ntype Fixture struct{ bun.BaseModel }\n"), 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return dir
}

func TestScanSource(t *testing.T) {
	specs, err := ScanSource(writeModels(t)).Models(context.Background())
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	want := []ModelSpec{
		{Name: "User", TypeName: "User", Table: "app_users"},
		{Name: "UserProfile", TypeName: "UserProfile", Table: "user_profiles"},
	}
	if len(specs) != len(want) {
		t.Fatalf("expected %d models, got %+v", len(want), specs)
	}
	for i := range want {
		if specs[i] != want[i] {
			t.Fatalf("model %d = %+v, want %+v", i, specs[i], want[i])
		}
	}
}

func TestScanSourceMissingDir(t *testing.T) {
	if _, err := ScanSource(filepath.Join(t.TempDir(), "missing")).Models(context.Background()); err == nil {
		t.Fatalf("expected an error for a missing directory")
	}
}

func TestManifestSource(t *testing.T) {
	file := filepath.Join(t.TempDir(), "models.yaml")
	manifest := "models:\n  - name: Order\n  - name: LineItem\n    type: OrderLine\n    table: order_lines\n"
	if err := os.WriteFile(file, []byte(manifest), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	specs, err := ManifestSource(file).Models(context.Background())
	if err != nil {
		t.Fatalf("manifest error: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 models, got %+v", specs)
	}
	if specs[0] != (ModelSpec{Name: "Order", TypeName: "Order", Table: "orders"}) {
		t.Fatalf("defaults not applied: %+v", specs[0])
	}
	if specs[1] != (ModelSpec{Name: "LineItem", TypeName: "OrderLine", Table: "order_lines"}) {
		t.Fatalf("unexpected model: %+v", specs[1])
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("models:\n  - table: x\n"), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := ManifestSource(bad).Models(context.Background()); err == nil {
		t.Fatalf("expected an error for a model without name")
	}
}

type Account struct {
	bun.BaseModel `bun:"table:accounts_tbl"`

	ID int64 `bun:",pk,autoincrement"`
}

type AuditEntry struct {
	bun.BaseModel

	ID int64 `bun:",pk,autoincrement"`
}

func TestRegistrySource(t *testing.T) {
	reg := repository.NewRegistry(nil)
	if _, err := repository.Register[Account]("Account", repository.WithRegistry(reg)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := repository.Register[AuditEntry]("AuditEntry", repository.WithRegistry(reg), repository.WithPriority(-1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	specs, err := RegistrySource(reg).Models(context.Background())
	if err != nil {
		t.Fatalf("registry source error: %v", err)
	}
	want := []ModelSpec{
		{Name: "AuditEntry", TypeName: "AuditEntry", Table: "audit_entries"},
		{Name: "Account", TypeName: "Account", Table: "accounts_tbl"},
	}
	if len(specs) != len(want) {
		t.Fatalf("expected %d models, got %+v", len(want), specs)
	}
	for i := range want {
		if specs[i] != want[i] {
			t.Fatalf("model %d = %+v, want %+v", i, specs[i], want[i])
		}
	}
}
