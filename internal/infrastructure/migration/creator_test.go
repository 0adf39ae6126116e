package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadcrm/backend/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add receipts table", "add_receipts_table"},
		{"Add-Receipts-Table", "add_receipts_table"},
		{"ADD_RECEIPTS_TABLE", "add_receipts_table"},
		{"add__receipts__table", "add_receipts_table"},
		{"Add Invoices 123", "add_invoices_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add receipt notes", "Free-text note on receipts")
	require.NoError(t, err)
	require.NotNil(t, mf)

	assert.Equal(t, "000001", mf.Version)
	assert.True(t, strings.HasSuffix(mf.UpPath, ".up.sql"))
	assert.True(t, strings.HasSuffix(mf.DownPath, ".down.sql"))

	upBase := strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql")
	downBase := strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql")
	assert.Equal(t, upBase, downBase)
	assert.Equal(t, "000001_add_receipt_notes", upBase)

	upContent, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(upContent), "add receipt notes")
	assert.Contains(t, string(upContent), "Free-text note on receipts")
	assert.Contains(t, string(upContent), "DECIMAL(18,2)")

	downContent, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(downContent), "Rollback")
	assert.Contains(t, string(downContent), "Write your DOWN migration SQL here")
}

func TestCreateMigration_ContinuesSequence(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"000001_create_invoicing_tables.up.sql", "000007_add_branch_code.up.sql", "notes.up.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0o644))
	}

	mf, err := CreateMigration(dir, "index receipts by date", "")
	require.NoError(t, err)
	assert.Equal(t, "000008", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000008_index_receipts_by_date.down.sql"), mf.DownPath)

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Contains(t, names, "000008_index_receipts_by_date")
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	require.Error(t, err)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "test", "test migration")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	t.Run("lists up files in version order", func(t *testing.T) {
		dir := t.TempDir()
		for _, f := range []string{
			"000002_add_receipt_notes.up.sql",
			"000002_add_receipt_notes.down.sql",
			"000001_create_invoicing_tables.up.sql",
			"000001_create_invoicing_tables.down.sql",
			"README.md",
			".gitkeep",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0o644))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

		names, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_create_invoicing_tables", "000002_add_receipt_notes"}, names)
	})

	t.Run("empty directory", func(t *testing.T) {
		names, err := ListMigrations(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("missing directory", func(t *testing.T) {
		names, err := ListMigrations("/nonexistent/path/to/migrations")
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func TestListMigrationsFS(t *testing.T) {
	t.Run("map fs", func(t *testing.T) {
		fsys := fstest.MapFS{
			"000001_init.up.sql":   {Data: []byte("-- up")},
			"000001_init.down.sql": {Data: []byte("-- down")},
			"notes.txt":            {Data: []byte("x")},
		}

		names, err := ListMigrationsFS(fsys)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_init"}, names)
	})

	t.Run("embedded schema contains the invoicing tables", func(t *testing.T) {
		names, err := ListMigrationsFS(migrations.FS)
		require.NoError(t, err)
		require.NotEmpty(t, names)
		assert.Equal(t, "000001_create_invoicing_tables", names[0])

		up, err := migrations.FS.ReadFile("000001_create_invoicing_tables.up.sql")
		require.NoError(t, err)
		for _, table := range []string{"invoices", "invoice_line_items", "receipts", "branches", "leads", "products"} {
			assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table+" (")
		}
		assert.Contains(t, string(up), "UNIQUE (invoice_id, sequence)")
		assert.Contains(t, string(up), "pending_amount >= 0 AND pending_amount <= total")
	})
}
