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
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
	"github.com/tomoncle/repogen/repository"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

const bunImportPath = "github.com/uptrace/bun"

var baseModelType = reflect.TypeOf(bun.BaseModel{})

// RegistrySource lists the models defined in reg through repository.Define.
func RegistrySource(reg *repository.Registry) Source {
	return SourceFunc(func(ctx context.Context) ([]ModelSpec, error) {
		defined := make(map[string]bool)
		for _, name := range reg.Names() {
			defined[name] = true
		}
		specs := make([]ModelSpec, 0, len(defined))
		for _, m := range reg.Models().Models() {
			if !defined[m.Name()] {
				continue
			}
			t := reflect.TypeOf(m.Instance())
			for t.Kind() == reflect.Ptr {
				t = t.Elem()
			}
			specs = append(specs, ModelSpec{
				Name:     m.Name(),
				TypeName: t.Name(),
				Table:    tableOf(t.Name(), structBunTag(t)),
			})
		}
		return specs, nil
	})
}

// ScanSource lists the exported structs of the Go package in dir that embed
// bun.BaseModel. Test files are ignored.
func ScanSource(dir string) Source {
	return SourceFunc(func(ctx context.Context) ([]ModelSpec, error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		fset := token.NewFileSet()
		var specs []ModelSpec
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.SkipObjectResolution)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", dir, err)
			}
			specs = append(specs, scanFile(file)...)
		}
		sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
		return specs, nil
	})
}

func scanFile(file *ast.File) []ModelSpec {
	alias := bunAlias(file)
	if alias == "" {
		return nil
	}
	var specs []ModelSpec
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, s := range gen.Specs {
			ts, ok := s.(*ast.TypeSpec)
			if !ok || !ts.Name.IsExported() || ts.TypeParams != nil {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			tag, ok := baseModelTag(st, alias)
			if !ok {
				continue
			}
			specs = append(specs, ModelSpec{
				Name:     ts.Name.Name,
				TypeName: ts.Name.Name,
				Table:    tableOf(ts.Name.Name, tag),
			})
		}
	}
	return specs
}

// bunAlias returns the name bun is imported under in file, or "".
func bunAlias(file *ast.File) string {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != bunImportPath {
			continue
		}
		if imp.Name != nil {
			if imp.Name.Name == "_" || imp.Name.Name == "." {
				return ""
			}
			return imp.Name.Name
		}
		return "bun"
	}
	return ""
}

// baseModelTag finds the embedded alias.BaseModel field of st and returns
// its bun tag.
func baseModelTag(st *ast.StructType, alias string) (string, bool) {
	for _, field := range st.Fields.List {
		if len(field.Names) != 0 {
			continue
		}
		sel, ok := field.Type.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "BaseModel" {
			continue
		}
		if x, ok := sel.X.(*ast.Ident); !ok || x.Name != alias {
			continue
		}
		if field.Tag == nil {
			return "", true
		}
		raw, err := strconv.Unquote(field.Tag.Value)
		if err != nil {
			return "", true
		}
		return reflect.StructTag(raw).Get("bun"), true
	}
	return "", false
}

func structBunTag(t reflect.Type) string {
	if t.Kind() != reflect.Struct {
		return ""
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == baseModelType {
			return f.Tag.Get("bun")
		}
	}
	return ""
}

// tableOf returns the table option of a bun tag, or the table name bun
// derives from typeName.
func tableOf(typeName, tag string) string {
	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		if v, ok := strings.CutPrefix(opt, "table:"); ok && v != "" {
			return v
		}
	}
	return inflection.Plural(strcase.ToSnake(typeName))
}

type manifest struct {
	Models []ModelSpec `yaml:"models"`
}

// ManifestSource reads models from a YAML file of the form
//
//	models:
//	  - name: User
//	    type: User
//	    table: users
//
// type defaults to name and table to the name bun would derive.
func ManifestSource(path string) Source {
	return SourceFunc(func(ctx context.Context) ([]ModelSpec, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		var m manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
		for i := range m.Models {
			spec := &m.Models[i]
			if spec.Name == "" {
				return nil, fmt.Errorf("manifest %s: model %d has no name", path, i)
			}
			if spec.TypeName == "" {
				spec.TypeName = spec.Name
			}
			if spec.Table == "" {
				spec.Table = tableOf(spec.TypeName, "")
			}
		}
		return m.Models, nil
	})
}
