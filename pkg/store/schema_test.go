package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	// Arrange
	db, err := sql.Open(driverName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	// Act
	err = CreateSchema(db)

	// Assert
	require.NoError(t, err)

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	tables := []string{"blobs", "rules", "matches", "findings", "provenance"}
	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	db, err := sql.Open(driverName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	require.NoError(t, CreateSchema(db))
	assert.NoError(t, CreateSchema(db))
}

func TestCreateSchema_RejectsOtherVersion(t *testing.T) {
	db, err := sql.Open(driverName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	require.NoError(t, CreateSchema(db))
	_, err = db.Exec("UPDATE schema_version SET version = ?", SchemaVersion+1)
	require.NoError(t, err)

	assert.Error(t, CreateSchema(db))
}
