package ledger_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/mauriceling/serebo/internal/ledger"
	"github.com/mauriceling/serebo/internal/store"
	"github.com/mauriceling/serebo/internal/storeerrors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return ledger.New(s, zerolog.Nop())
}

func TestInsertText_FirstInsertChainsOffGenesis(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	res, err := l.InsertText(ctx, "hello", "first entry")
	require.NoError(t, err)
	require.Equal(t, store.GenesisParentID, int(res.ParentBlockID))
	require.Equal(t, store.GenesisParentDTStamp, res.ParentDateTimeStamp)
	require.Equal(t, store.GenesisParentRandomString, res.ParentRandomString)
	require.Equal(t, store.GenesisParentHash, res.ParentHash)
	require.NotEmpty(t, res.BlockHash)
	require.NotEmpty(t, res.DataHash)
}

func TestInsertText_SecondInsertChainsOffFirst(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	first, err := l.InsertText(ctx, "one", "first")
	require.NoError(t, err)

	second, err := l.InsertText(ctx, "two", "second")
	require.NoError(t, err)

	require.Equal(t, first.BlockHash, second.ParentHash)
	require.NotEqual(t, first.BlockHash, second.BlockHash)
}

func TestInsertText_DescriptionGetsRandomSuffix(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	res, err := l.InsertText(ctx, "data", "my description")
	require.NoError(t, err)
	require.NotEqual(t, "my description", res.UserDescription)
	require.Contains(t, res.UserDescription, "my description:")
}

func TestInsertFText_DescriptionUsedVerbatim(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	res, err := l.InsertFText(ctx, "data", "exact description")
	require.NoError(t, err)
	require.Equal(t, "exact description", res.UserDescription)
}

func TestInsertFText_RepeatedCallsSucceedAtDistinctTimestamps(t *testing.T) {
	// The duplicate-record path itself (same dtstamp+hash) is exercised
	// directly against the store's unique index in
	// store_test.go's TestDatalogUniqueIndex_RejectsDuplicateDtstampHash,
	// since forcing a same-microsecond collision through the ledger API
	// would require mocking the clock. Here we confirm that repeated
	// calls with identical data+description never spuriously collide.
	l := openTestLedger(t)
	ctx := context.Background()

	_, err := l.InsertFText(ctx, "same-data", "same-description")
	require.NoError(t, err)

	_, err = l.InsertFText(ctx, "same-data", "same-description")
	require.NoError(t, err)
}

func TestInsertText_EmptyDataAndDefaultDescription(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	res, err := l.InsertText(ctx, "", "")
	require.NoError(t, err)
	require.Empty(t, res.Data)
	require.Contains(t, res.UserDescription, "NA:")
}

func TestLogFile_EmptyFileIsHashable(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	res, err := l.LogFile(ctx, path, "empty file")
	require.NoError(t, err)
	require.NotEmpty(t, res.Data)
}

func TestLogFile_StoresHashNotContent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("sample content"), 0o644))

	res, err := l.LogFile(ctx, path, "a sample file")
	require.NoError(t, err)
	require.NotContains(t, res.Data, "sample content")
	require.NotEmpty(t, res.Data)
}

func TestChangeAlias_AssignsRatherThanCombines(t *testing.T) {
	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	l := ledger.New(s, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`insert into notary (dtstamp, alias, owner, email, notarydts, notaryauthorization, notaryurl)
			values ('1', 'old-alias', 'owner', 'owner@example.org', '1', 'auth', 'https://notary.example.org')`)
		return err
	}))

	require.NoError(t, l.ChangeAlias(ctx, "old-alias", "new-alias"))

	var alias string
	require.NoError(t, s.DB().QueryRow(`select alias from notary where dtstamp = '1'`).Scan(&alias))
	require.Equal(t, "new-alias", alias)
}

func TestChangeAlias_UnknownAliasReturnsNotFound(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	err := l.ChangeAlias(ctx, "nope", "whatever")
	require.ErrorIs(t, err, storeerrors.ErrNotFound)
}

func TestSystemRecord_WritesOneRowPerField(t *testing.T) {
	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	l := ledger.New(s, zerolog.Nop())
	ctx := context.Background()

	data, err := l.SystemRecord(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, data.Platform)

	var count int
	require.NoError(t, s.DB().QueryRow(`select count(*) from systemdata`).Scan(&count))
	require.Equal(t, len(data.Fields()), count)
}

func TestSelfSign_LogsUnderSelfNotarizationPrefix(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	s, res, err := l.SelfSign(ctx)
	require.NoError(t, err)
	require.Len(t, s, 32)
	require.Equal(t, "Self notarization", res.UserDescription)
}

func TestNTPSign_LogsUnderNTPNotarizationPrefix(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	s, res, err := l.NTPSign(ctx, "2024:1:1:0:0:0:0")
	require.NoError(t, err)
	require.Len(t, s, 32)
	require.Contains(t, res.UserDescription, "NTP server (self) notarization")
}

func TestRandomString_LogsInternalEvent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	s, res, err := l.RandomString(ctx, 16, "test call")
	require.NoError(t, err)
	require.Len(t, s, 16)
	require.Equal(t, s, res.Data)
}

