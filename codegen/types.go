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

	"github.com/tomoncle/repogen/utils"
)

// DefaultRepositoryImport is the import path of the generic repository
// package generated files build on.
const DefaultRepositoryImport = "github.com/tomoncle/repogen/repository"

// IndexFileName is the file holding model names and the Repositories struct.
// It is regenerated on every run.
const IndexFileName = "repositories_gen.go"

// ModelSpec describes one model to generate a repository for.
type ModelSpec struct {
	Name     string `yaml:"name" json:"name"`   // e.g., "User"
	TypeName string `yaml:"type" json:"type"`   // e.g., "User"
	Table    string `yaml:"table" json:"table"` // e.g., "users"
}

// Source yields the models to generate.
type Source interface {
	Models(ctx context.Context) ([]ModelSpec, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]ModelSpec, error)

func (f SourceFunc) Models(ctx context.Context) ([]ModelSpec, error) { return f(ctx) }

// Config holds configuration for repository generation.
type Config struct {
	OutputDir        string // directory the files are written to
	Package          string // package clause; defaults to the base of OutputDir
	ModelsImport     string // import path of the model structs; empty means the output package
	RepositoryImport string // defaults to DefaultRepositoryImport
	Force            bool   // overwrite existing per-model files
	Register         bool   // emit repository.Define calls for every model
	Logger           *utils.Logger
}

// Result lists the files a run wrote and the ones it left untouched.
type Result struct {
	Written []string
	Skipped []string
}

type modelData struct {
	ModelSpec
	Ident     string // UserProfile
	RepoType  string // UserProfileRepository
	ConstName string // UserProfileModel
	DefName   string // UserProfileDefinition
	Field     string // UserProfiles
	TypeRef   string // models.UserProfile
	FileName  string // user_profile_repository.go
}

type fileData struct {
	Package          string
	RepositoryImport string
	ModelsImport     string
	ModelsAlias      string
	Register         bool
	Model            modelData
	Models           []modelData
}
