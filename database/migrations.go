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

package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/uptrace/bun"
)

// MigrationManager creates the tables of registered models and records
// each applied step in the migrations table.
type MigrationManager struct {
	db       *bun.DB
	logger   Logger
	registry ModelRegistry
	silent   bool
}

// Migration represents an applied migration record stored in the database.
type Migration struct {
	bun.BaseModel `bun:"table:migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// NewMigrationManager constructs a MigrationManager over the default model
// registry.
func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	return &MigrationManager{
		db:       db,
		logger:   logger,
		registry: defaultRegistry,
	}
}

// SetRegistry replaces the registry whose models are migrated.
func (mm *MigrationManager) SetRegistry(registry ModelRegistry) {
	if registry != nil {
		mm.registry = registry
	}
}

// SetSilent mutes the query log while migrations run.
func (mm *MigrationManager) SetSilent(silent bool) {
	mm.silent = silent
}

// RunMigrations creates the migration tracking table if needed and applies
// every pending migration in model priority order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); mm.silent && !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := 0
	for _, migration := range mm.getAllMigrations() {
		ran, err := mm.runMigration(ctx, migration)
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
		if ran {
			applied++
		}
	}

	if mm.logger != nil {
		mm.logger.Info("Database migrations completed!", "applied", applied)
	}
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) getAllMigrations() []MigrationItem {
	models := mm.registry.Models()
	migrations := make([]MigrationItem, 0, len(models))
	for _, model := range models {
		instance := model.Instance()
		migrations = append(migrations, MigrationItem{
			Version:     "create_table:" + model.Name(),
			Name:        "create_" + model.Name(),
			Description: fmt.Sprintf("Create table for model %s", model.Name()),
			Up: func(ctx context.Context, db bun.IDB) error {
				_, err := db.NewCreateTable().
					Model(instance).
					IfNotExists().
					Exec(ctx)
				return err
			},
		})
	}
	return migrations
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) (bool, error) {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&Migration{
				Version:     migration.Version,
				Name:        migration.Name,
				AppliedAt:   time.Now(),
				Description: migration.Description,
			}).
			Exec(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	if mm.logger != nil {
		mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	}
	return true, nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
