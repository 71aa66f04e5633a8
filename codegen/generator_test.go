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
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig(dir string) Config {
	return Config{
		OutputDir:    dir,
		Package:      "repos",
		ModelsImport: "example.com/app/models",
		Logger:       quietLogger(),
	}
}

// squash collapses whitespace so assertions ignore gofmt alignment.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func readFile(t *testing.T, file string) string {
	t.Helper()
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read %s: %v", file, err)
	}
	return string(data)
}

func assertParses(t *testing.T, file string) {
	t.Helper()
	if _, err := parser.ParseFile(token.NewFileSet(), file, nil, parser.AllErrors); err != nil {
		t.Fatalf("generated file %s does not parse: %v", file, err)
	}
}

var testModels = []ModelSpec{
	{Name: "UserProfile", TypeName: "UserProfile", Table: "user_profiles"},
	{Name: "User", TypeName: "User", Table: "users"},
}

func TestGenerateModels(t *testing.T) {
	dir := t.TempDir()
	res, err := GenerateModels(context.Background(), testModels, testConfig(dir))
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if len(res.Written) != 3 || len(res.Skipped) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	userFile := filepath.Join(dir, "user_repository.go")
	profileFile := filepath.Join(dir, "user_profile_repository.go")
	indexFile := filepath.Join(dir, IndexFileName)
	for _, f := range []string{userFile, profileFile, indexFile} {
		assertParses(t, f)
	}

	user := squash(readFile(t, userFile))
	for _, want := range []string{
		"package repos",
		`models "example.com/app/models"`,
		"type UserRepository struct { repository.Repository[models.User] }",
		"func NewUserRepository(db bun.IDB) *UserRepository",
		"repository.NewRepository[models.User](db, string(UserModel))",
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("user repository missing %q:\n%s", want, user)
		}
	}

	index := readFile(t, indexFile)
	if !strings.HasPrefix(index, "// Code generated by repogen. DO NOT EDIT.") {
		t.Fatalf("index missing generated header")
	}
	index = squash(index)
	for _, want := range []string{
		`UserModel ModelName = "User"`,
		`UserProfileModel ModelName = "UserProfile"`,
		"Users *UserRepository",
		"UserProfiles *UserProfileRepository",
		"UserProfiles: NewUserProfileRepository(db)",
	} {
		if !strings.Contains(index, want) {
			t.Fatalf("index missing %q:\n%s", want, index)
		}
	}
	if strings.Contains(index, "repository.Define") {
		t.Fatalf("index should not register models unless asked")
	}
}

func TestGenerateModelsSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	if _, err := GenerateModels(context.Background(), testModels, cfg); err != nil {
		t.Fatalf("generate error: %v", err)
	}

	userFile := filepath.Join(dir, "user_repository.go")
	edited := readFile(t, userFile) + "\n// hand edited\n"
	if err := os.WriteFile(userFile, []byte(edited), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := GenerateModels(context.Background(), testModels, cfg)
	if err != nil {
		t.Fatalf("regenerate error: %v", err)
	}
	if len(res.Skipped) != 2 || len(res.Written) != 1 {
		t.Fatalf("expected two skips and the index, got %+v", res)
	}
	if readFile(t, userFile) != edited {
		t.Fatalf("existing repository file was overwritten")
	}

	cfg.Force = true
	res, err = GenerateModels(context.Background(), testModels, cfg)
	if err != nil {
		t.Fatalf("forced generate error: %v", err)
	}
	if len(res.Written) != 3 {
		t.Fatalf("expected every file written with force, got %+v", res)
	}
	if strings.Contains(readFile(t, userFile), "hand edited") {
		t.Fatalf("force did not overwrite the repository file")
	}
}

func TestGenerateModelsRegister(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Register = true
	if _, err := GenerateModels(context.Background(), testModels, cfg); err != nil {
		t.Fatalf("generate error: %v", err)
	}
	indexFile := filepath.Join(dir, IndexFileName)
	assertParses(t, indexFile)
	index := squash(readFile(t, indexFile))
	want := "UserDefinition = repository.Define[models.User](string(UserModel))"
	if !strings.Contains(index, want) {
		t.Fatalf("index missing %q:\n%s", want, index)
	}
}

func TestGenerateModelsSamePackage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	cfg := Config{OutputDir: dir, Logger: quietLogger()}
	if _, err := GenerateModels(context.Background(), testModels[1:], cfg); err != nil {
		t.Fatalf("generate error: %v", err)
	}
	user := squash(readFile(t, filepath.Join(dir, "user_repository.go")))
	if !strings.Contains(user, "package store") {
		t.Fatalf("package should default to the output directory name:\n%s", user)
	}
	if !strings.Contains(user, "repository.Repository[User]") {
		t.Fatalf("unqualified model type expected:\n%s", user)
	}
}

func TestGenerateModelsRejectsBadInput(t *testing.T) {
	cases := map[string][]ModelSpec{
		"empty":      nil,
		"duplicate":  {{Name: "User"}, {Name: "User"}},
		"same ident": {{Name: "user"}, {Name: "User"}},
		"bad name":   {{Name: "1st"}},
		"unexported": {{Name: "User", TypeName: "user"}},
	}
	for name, models := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := GenerateModels(context.Background(), models, testConfig(t.TempDir())); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}

	cfg := testConfig(t.TempDir())
	cfg.Package = "not-a-package"
	if _, err := GenerateModels(context.Background(), testModels, cfg); err == nil {
		t.Fatalf("expected invalid package error")
	}
}

func TestRender(t *testing.T) {
	src, err := Render(ModelSpec{Name: "Order"}, testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	got := squash(string(src))
	if !strings.Contains(got, "type OrderRepository struct") || !strings.Contains(got, "(table orders)") {
		t.Fatalf("unexpected render output:\n%s", got)
	}
}
