package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,

	// Assessments: one row per submitted job. Request parameters are frozen
	// at submission; pipeline results land in the cost columns and metadata.
	`CREATE TABLE IF NOT EXISTS assessments (
		id                  UUID PRIMARY KEY,
		status              TEXT NOT NULL DEFAULT 'PENDING',
		progress            INT NOT NULL DEFAULT 0,
		error               TEXT,
		car_make            TEXT,
		car_model           TEXT,
		car_year            INT,
		photo_urls          JSONB NOT NULL,
		tire_diameter       NUMERIC(7,2) NOT NULL,
		handle_width        NUMERIC(7,2) NOT NULL,
		license_width       NUMERIC(7,2) NOT NULL,
		exchange_rate       NUMERIC(12,6) NOT NULL,
		tax_rate            NUMERIC(6,4) NOT NULL,
		luxury_index        NUMERIC(6,3) NOT NULL,
		country_lux_factor  NUMERIC(6,3) NOT NULL,
		currency            TEXT NOT NULL,
		estimated_cost      NUMERIC(12,2),
		subtotal_base       NUMERIC(12,2),
		tax_amount          NUMERIC(12,2),
		subtotal_post_tax   NUMERIC(12,2),
		cost                JSONB,
		photo_results       JSONB,
		metadata            JSONB,
		invoice_url         TEXT,
		analysis_url        TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_assessments_status ON assessments(status);`,
	`CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments(created_at DESC);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
