package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
	require.NoError(t, ValidateDir(""), "embedded set")

	entries, err := fs.ReadDir(embedded, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestNegotiationMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_negotiations.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS negotiations",
		"CREATE TABLE IF NOT EXISTS negotiation_offers",
		"version integer NOT NULL DEFAULT 1",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_negotiation_offers_seq",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_negotiations_active_pair",
		"CHECK (buyer_uid <> seller_uid)",
	} {
		require.Truef(t, strings.Contains(content, sub), "missing expected statement %q", sub)
	}
}

func TestSQLiteSchemaCoversMigratedTables(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, ApplySQLiteSchema(context.Background(), conn))
	// idempotent
	require.NoError(t, ApplySQLiteSchema(context.Background(), conn))

	for _, table := range []string{
		"accounts", "products", "addresses", "conversations", "messages",
		"negotiations", "negotiation_offers", "orders", "notifications",
		"outbox_events", "outbox_dlq",
	} {
		require.Truef(t, conn.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Delivery Zones")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_delivery_zones.sql"))
	require.NoError(t, ValidateDir(dir))
}

func TestValidateRejectsBrokenMigrations(t *testing.T) {
	good := "-- +goose Up\nCREATE TABLE a(id int);\n-- +goose Down\nDROP TABLE a;\n"
	cases := map[string]fstest.MapFS{
		"bad filename": {"001_init.sql": {Data: []byte(good)}},
		"duplicate version": {
			"20260301090000_a.sql": {Data: []byte(good)},
			"20260301090000_b.sql": {Data: []byte(good)},
		},
		"down before up": {"20260301090000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}},
		"missing down":   {"20260301090000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"unterminated block": {"20260301090000_a.sql": {Data: []byte(
			"-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")}},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(fsys, ".")
			require.Error(t, err)
		})
	}

	versions, err := Validate(fstest.MapFS{
		"20260302000000_b.sql": {Data: []byte(good)},
		"20260301000000_a.sql": {Data: []byte(good)},
		"README.md":            {Data: []byte("ignored")},
	}, ".")
	require.NoError(t, err)
	require.Equal(t, []string{"20260301000000", "20260302000000"}, versions)
}

func TestNextVersionStaysAheadOfExisting(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := nextVersion(now, []string{"20250101000000"})
	require.NoError(t, err)
	require.Equal(t, "20260301000000", got)

	got, err = nextVersion(now, []string{"20260301090500"})
	require.NoError(t, err)
	require.Equal(t, "20260301090501", got)
}
