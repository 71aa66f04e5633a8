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

import "text/template"

var repositoryTemplate = template.Must(template.New("repository").Parse(`package {{.Package}}

import (
	"github.com/uptrace/bun"
	repository "{{.RepositoryImport}}"
{{- if .ModelsImport}}
	{{.ModelsAlias}} "{{.ModelsImport}}"
{{- end}}
)

// {{.Model.RepoType}} is the repository of the {{.Model.Name}} model
// (table {{.Model.Table}}). Add model specific queries here; this file is
// not overwritten once it exists.
type {{.Model.RepoType}} struct {
	repository.Repository[{{.Model.TypeRef}}]
}

// New{{.Model.RepoType}} returns a {{.Model.RepoType}} over db.
func New{{.Model.RepoType}}(db bun.IDB) *{{.Model.RepoType}} {
	return &{{.Model.RepoType}}{
		Repository: repository.NewRepository[{{.Model.TypeRef}}](db, string({{.Model.ConstName}})),
	}
}
`))

var indexTemplate = template.Must(template.New("index").Parse(`// Code generated by repogen. DO NOT EDIT.

package {{.Package}}

import (
	"github.com/uptrace/bun"
{{- if .Register}}
	repository "{{.RepositoryImport}}"
{{- if .ModelsImport}}
	{{.ModelsAlias}} "{{.ModelsImport}}"
{{- end}}
{{- end}}
)

// ModelName names a model known to the repository factory.
type ModelName string

const (
{{- range .Models}}
	{{.ConstName}} ModelName = "{{.Name}}"
{{- end}}
)

// ModelNames lists every generated model.
var ModelNames = []ModelName{
{{- range .Models}}
	{{.ConstName}},
{{- end}}
}
{{if .Register}}
var (
{{- range .Models}}
	{{.DefName}} = repository.Define[{{.TypeRef}}](string({{.ConstName}}))
{{- end}}
)
{{end}}
// Repositories holds one typed repository per model.
type Repositories struct {
{{- range .Models}}
	{{.Field}} *{{.RepoType}}
{{- end}}
}

// New returns the repositories of every model over db.
func New(db bun.IDB) *Repositories {
	return &Repositories{
{{- range .Models}}
		{{.Field}}: New{{.RepoType}}(db),
{{- end}}
	}
}
`))
