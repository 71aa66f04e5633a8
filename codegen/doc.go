// Package codegen writes one repository file per model, plus an index file
// holding the model names and a typed Repositories struct.
//
// Models come from a Source: the registry filled by repository.Define, a
// scan of a Go package for structs embedding bun.BaseModel, or a YAML
// manifest. Per-model files are meant to be edited and are kept on later
// runs unless Config.Force is set.
package codegen
