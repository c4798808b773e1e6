package dbadapter_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jv92admin/alfredagain-sub002/pkg/dbadapter"
)

func setupTestDB(t *testing.T) *dbadapter.SQLAdapter {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE things (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT,
			quantity INTEGER
		);
		INSERT INTO things (id, name, owner_id, quantity) VALUES
			('thing-1', 'Alpha', 'owner-1', 3),
			('thing-2', 'Beta', 'owner-1', 0),
			('thing-3', 'Gamma', 'owner-2', 7);
	`)
	require.NoError(t, err)

	return dbadapter.New(db, dbadapter.SQLite)
}

func TestTable_SelectAll(t *testing.T) {
	a := setupTestDB(t)
	res, err := a.Table("things").Select().Order("name", true).Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Data, 3)
	assert.Equal(t, "Alpha", res.Data[0]["name"])
	assert.Equal(t, "Gamma", res.Data[2]["name"])
}

func TestTable_SelectWithFilter(t *testing.T) {
	a := setupTestDB(t)
	res, err := a.Table("things").Select().Eq("owner_id", "owner-1").Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
}

func TestTable_SelectWithIn(t *testing.T) {
	a := setupTestDB(t)
	res, err := a.Table("things").Select().In("name", []any{"Alpha", "Gamma"}).Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
}

func TestTable_SelectWithLimit(t *testing.T) {
	a := setupTestDB(t)
	res, err := a.Table("things").Select().Order("name", true).Limit(1).Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Alpha", res.Data[0]["name"])
}

func TestTable_Insert(t *testing.T) {
	a := setupTestDB(t)
	res, err := a.Table("things").Insert([]map[string]any{
		{"id": "thing-4", "name": "Delta", "owner_id": "owner-2", "quantity": 1},
	}).Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Delta", res.Data[0]["name"])

	check, err := a.Table("things").Select().Eq("id", "thing-4").Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, check.Data, 1)
}

func TestTable_Update(t *testing.T) {
	a := setupTestDB(t)
	_, err := a.Table("things").Update(map[string]any{"quantity": 99}).Eq("id", "thing-2").Execute(context.Background())
	require.NoError(t, err)

	check, err := a.Table("things").Select().Eq("id", "thing-2").Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, check.Data, 1)
	assert.EqualValues(t, 99, check.Data[0]["quantity"])
}

func TestTable_UpdateWithoutFilterRejected(t *testing.T) {
	a := setupTestDB(t)
	_, err := a.Table("things").Update(map[string]any{"quantity": 0}).Execute(context.Background())
	assert.Error(t, err)
}

func TestTable_Delete(t *testing.T) {
	a := setupTestDB(t)
	res, err := a.Table("things").Delete().Eq("id", "thing-3").Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Data, 1)

	check, err := a.Table("things").Select().Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, check.Data, 2)
}

func TestTable_DeleteWithoutFilterRejected(t *testing.T) {
	a := setupTestDB(t)
	_, err := a.Table("things").Delete().Execute(context.Background())
	assert.Error(t, err)
}

func TestTable_ExecuteWithoutVerbErrors(t *testing.T) {
	a := setupTestDB(t)
	_, err := a.Table("things").Eq("id", "thing-1").Execute(context.Background())
	assert.Error(t, err)
}

func TestRPC_UnsupportedOnSQLite(t *testing.T) {
	a := setupTestDB(t)
	_, err := a.RPC("some_func", map[string]any{"x": 1}).Execute(context.Background())
	assert.Error(t, err)
}
