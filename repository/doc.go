// Package repository provides a generic repository built on Bun that
// forwards CRUD calls for one model, plus a factory that resolves a
// repository by model name.
//
// A model is attached to its name with Define, usually as a package-level
// variable:
//
//	type User struct {
//		bun.BaseModel `bun:"table:users"`
//		ID            int64 `bun:",pk,autoincrement"`
//		Email         string
//	}
//
//	var Users = repository.Define[User]("User")
//
// The typed repository is then Users.Repository(db) or For[User](factory),
// while Factory.Get("User") returns an untyped ModelRepository.
package repository
