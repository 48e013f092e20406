package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mauriceling/serebo/internal/store"
	"github.com/mauriceling/serebo/internal/storeerrors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_SeedsMetadata(t *testing.T) {
	s := openTestStore(t)

	created, err := s.Metadata(store.MetaCreationTimestamp)
	require.NoError(t, err)
	require.NotEmpty(t, created)

	id, err := s.Metadata(store.MetaBlackboxID)
	require.NoError(t, err)
	require.Len(t, id, store.BlackboxIDLength)

	path, err := s.Metadata(store.MetaBlackboxPath)
	require.NoError(t, err)
	require.NotEmpty(t, path)
}

func TestOpen_SeedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blackbox.sdb")

	s1, err := store.Open(path, zerolog.Nop())
	require.NoError(t, err)
	id1, err := s1.Metadata(store.MetaBlackboxID)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := store.Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()
	id2, err := s2.Metadata(store.MetaBlackboxID)
	require.NoError(t, err)

	require.Equal(t, id1, id2, "blackboxID must be fixed for the life of the store")
}

func TestSetMetadata_WriteOnce(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SetMetadata("custom_key", "v1"))

	err := s.SetMetadata("custom_key", "v2")
	require.ErrorIs(t, err, storeerrors.ErrDuplicateRecord)

	got, err := s.Metadata("custom_key")
	require.NoError(t, err)
	require.Equal(t, "v1", got)
}

func TestSetMetadata_ReservedKeysAreWriteOnce(t *testing.T) {
	s := openTestStore(t)

	for _, key := range []string{store.MetaBlackboxID, store.MetaCreationTimestamp, store.MetaBlackboxPath} {
		err := s.SetMetadata(key, "overwrite")
		require.ErrorIs(t, err, storeerrors.ErrDuplicateRecord, "key %s", key)
	}
}

func TestWriteTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sentinel := sql.ErrNoRows
	err := s.WriteTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`insert into systemdata (dtstamp, key, value) values ('1', 'k', 'v')`)
		require.NoError(t, execErr)
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int
	require.NoError(t, s.DB().QueryRow(`select count(*) from systemdata`).Scan(&count))
	require.Equal(t, 0, count)
}

func TestWriteTx_CommitsOnSuccess(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WriteTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`insert into systemdata (dtstamp, key, value) values ('1', 'k', 'v')`)
		return execErr
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.DB().QueryRow(`select count(*) from systemdata`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestBackup_ProducesConsistentCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "blackbox.sdb")
	dest := filepath.Join(dir, "blackbox.backup.sdb")

	s, err := store.Open(src, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteTx(context.Background(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`insert into datalog (dtstamp, hash, data, description) values ('1', 'h', 'd', 'NA')`)
		return execErr
	}))

	require.NoError(t, s.Backup(context.Background(), dest))

	backup, err := store.Open(dest, zerolog.Nop())
	require.NoError(t, err)
	defer backup.Close()

	var count int
	require.NoError(t, backup.DB().QueryRow(`select count(*) from datalog`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestDatalogUniqueIndex_RejectsDuplicateDtstampHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insert := func(tx *sql.Tx) error {
		_, err := tx.Exec(`insert into datalog (dtstamp, hash, data, description) values ('1', 'h', 'd', 'NA')`)
		return err
	}
	require.NoError(t, s.WriteTx(ctx, insert))
	err := s.WriteTx(ctx, insert)
	require.Error(t, err)
}
