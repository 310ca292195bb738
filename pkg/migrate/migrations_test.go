package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/db"
	"github.com/angelmondragon/testhub-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Migrations()); err != nil {
		t.Fatalf("ValidateFS: %v", err)
	}
}

func TestValidateFSRejectsBrokenMigrations(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"missing down": {"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;")}},
		"duplicate": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"bad name": {"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"empty":    {},
	}
	for name, fsys := range cases {
		if err := migrate.ValidateFS(fsys); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestPDFDocumentsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_pdf_documents.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS pdf_documents",
		"CHECK (status IN ('processing', 'processed', 'partially_processed', 'failed'))",
		"CHECK ((status = 'processed') = (processed_at IS NOT NULL))",
		"DROP TABLE IF EXISTS pdf_documents",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestExtractionJobsMigrationEnforcesSingleRun(t *testing.T) {
	content := readMigration(t, "*_create_extraction_jobs.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS extraction_jobs",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_extraction_jobs_pdf_id ON extraction_jobs (pdf_id)",
		"DROP TABLE IF EXISTS extraction_jobs",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestQuestionsMigrationHasNoForeignKeys(t *testing.T) {
	for _, pattern := range []string{"*_create_questions.sql", "*_create_page_images.sql"} {
		content := readMigration(t, pattern)
		if strings.Contains(strings.ToUpper(content), "REFERENCES") {
			t.Errorf("%s: collections are related logically only", pattern)
		}
	}
}

func TestAutoMigrateModelsOnSQLite(t *testing.T) {
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    "file:migrate_test?mode=memory&cache=shared",
	}, nil)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	defer client.Close()

	if err := migrate.AutoMigrateModels(context.Background(), client); err != nil {
		t.Fatalf("AutoMigrateModels: %v", err)
	}
	for _, table := range []string{"pdf_documents", "page_images", "questions", "extraction_jobs"} {
		if !client.DB().Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
