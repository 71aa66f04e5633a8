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
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"sort"
	"text/template"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
	"github.com/tomoncle/repogen/utils"
)

const loggerName = "REPOGEN"

// Generate writes the repository files of every model src yields.
func Generate(ctx context.Context, src Source, cfg Config) (*Result, error) {
	models, err := src.Models(ctx)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	return GenerateModels(ctx, models, cfg)
}

// GenerateModels writes one <name>_repository.go per model and the
// repositories_gen.go index into cfg.OutputDir. Existing per-model files are
// skipped unless cfg.Force is set; the index is always rewritten.
func GenerateModels(ctx context.Context, models []ModelSpec, cfg Config) (*Result, error) {
	start := time.Now()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	data, err := prepareModels(models, cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	base := fileData{
		Package:          cfg.Package,
		RepositoryImport: cfg.RepositoryImport,
		ModelsImport:     cfg.ModelsImport,
		ModelsAlias:      modelsAlias(cfg.ModelsImport),
		Register:         cfg.Register,
		Models:           data,
	}

	result := &Result{}
	for _, m := range data {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		file := filepath.Join(cfg.OutputDir, m.FileName)
		if !cfg.Force && fileExists(file) {
			cfg.Logger.Infof("skipped %s (already exists, use --force to overwrite)", file)
			result.Skipped = append(result.Skipped, file)
			continue
		}
		fd := base
		fd.Model = m
		if err := writeFile(file, repositoryTemplate, fd); err != nil {
			return result, err
		}
		cfg.Logger.Infof("generated %s", file)
		result.Written = append(result.Written, file)
	}

	index := filepath.Join(cfg.OutputDir, IndexFileName)
	if err := writeFile(index, indexTemplate, base); err != nil {
		return result, err
	}
	result.Written = append(result.Written, index)
	cfg.Logger.WithField("models", len(data)).
		WithField("elapsed_ms", utils.SinceMillis(start)).
		Infof("generated %s", index)
	return result, nil
}

func (c *Config) normalize() error {
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.Package == "" {
		abs, err := filepath.Abs(c.OutputDir)
		if err != nil {
			return err
		}
		c.Package = filepath.Base(abs)
	}
	if !token.IsIdentifier(c.Package) {
		return fmt.Errorf("invalid package name %q", c.Package)
	}
	if c.RepositoryImport == "" {
		c.RepositoryImport = DefaultRepositoryImport
	}
	if c.Logger == nil {
		c.Logger = utils.NewLogger(loggerName)
	}
	return nil
}

func prepareModels(models []ModelSpec, cfg Config) ([]modelData, error) {
	if len(models) == 0 {
		return nil, errors.New("no models to generate")
	}
	alias := modelsAlias(cfg.ModelsImport)
	byName := make(map[string]bool, len(models))
	byIdent := make(map[string]string, len(models))
	out := make([]modelData, 0, len(models))
	for _, spec := range models {
		if spec.Name == "" {
			return nil, errors.New("model with empty name")
		}
		if spec.TypeName == "" {
			spec.TypeName = spec.Name
		}
		if spec.Table == "" {
			spec.Table = tableOf(spec.TypeName, "")
		}
		ident := strcase.ToCamel(spec.Name)
		if !token.IsIdentifier(ident) || !token.IsExported(ident) {
			return nil, fmt.Errorf("model %q: cannot derive a Go identifier", spec.Name)
		}
		if !token.IsIdentifier(spec.TypeName) || (alias != "" && !token.IsExported(spec.TypeName)) {
			return nil, fmt.Errorf("model %q: invalid type name %q", spec.Name, spec.TypeName)
		}
		if byName[spec.Name] {
			return nil, fmt.Errorf("duplicate model %q", spec.Name)
		}
		if prev, dup := byIdent[ident]; dup {
			return nil, fmt.Errorf("models %q and %q map to the same identifier %s", prev, spec.Name, ident)
		}
		byName[spec.Name] = true
		byIdent[ident] = spec.Name

		typeRef := spec.TypeName
		if alias != "" {
			typeRef = alias + "." + spec.TypeName
		}
		out = append(out, modelData{
			ModelSpec: spec,
			Ident:     ident,
			RepoType:  ident + "Repository",
			ConstName: ident + "Model",
			DefName:   ident + "Definition",
			Field:     inflection.Plural(ident),
			TypeRef:   typeRef,
			FileName:  strcase.ToSnake(spec.Name) + "_repository.go",
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// modelsAlias is the identifier generated files import the models package as.
func modelsAlias(importPath string) string {
	if importPath == "" {
		return ""
	}
	if base := path.Base(importPath); token.IsIdentifier(base) && base != "repository" && base != "bun" {
		return base
	}
	return "models"
}

// Render returns the formatted source of the per-model file of spec.
func Render(spec ModelSpec, cfg Config) ([]byte, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	data, err := prepareModels([]ModelSpec{spec}, cfg)
	if err != nil {
		return nil, err
	}
	return render(repositoryTemplate, fileData{
		Package:          cfg.Package,
		RepositoryImport: cfg.RepositoryImport,
		ModelsImport:     cfg.ModelsImport,
		ModelsAlias:      modelsAlias(cfg.ModelsImport),
		Model:            data[0],
		Models:           data,
	})
}

func render(tmpl *template.Template, data fileData) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", tmpl.Name(), err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", tmpl.Name(), err)
	}
	return src, nil
}

func writeFile(file string, tmpl *template.Template, data fileData) error {
	src, err := render(tmpl, data)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	if err := os.WriteFile(file, src, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func fileExists(file string) bool {
	_, err := os.Stat(file)
	return err == nil
}
