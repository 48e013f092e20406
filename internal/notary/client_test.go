package notary_test

import (
	"context"
	"testing"

	"github.com/mauriceling/serebo/internal/ledger"
	"github.com/mauriceling/serebo/internal/notary"
	"github.com/mauriceling/serebo/internal/store"
	"github.com/mauriceling/serebo/internal/storeerrors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func ctxBG() context.Context { return context.Background() }

type testClient struct {
	client     *notary.Client
	store      *store.Store
	blackboxID string
}

func newTestClient(t *testing.T, url string) testClient {
	t.Helper()
	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	blackboxID, err := s.Metadata(store.MetaBlackboxID)
	require.NoError(t, err)

	l := ledger.New(s, zerolog.Nop())
	return testClient{
		client:     notary.NewClient(url, s, l, zerolog.Nop()),
		store:      s,
		blackboxID: blackboxID,
	}
}

// newTestClientSameBlackbox builds a second client pointed at a
// different local store but claiming the same blackboxID, to exercise
// server-side duplicate rejection (the first client's local
// already-registered check only looks at its own store).
func newTestClientSameBlackbox(t *testing.T, url string, blackboxID string) testClient {
	t.Helper()
	s, err := store.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	l := ledger.New(s, zerolog.Nop())
	return testClient{
		client:     notary.NewClient(url, s, l, zerolog.Nop()),
		blackboxID: blackboxID,
	}
}

func TestRegisterBlackbox_LocalDuplicateRejectedWithoutNetworkCall(t *testing.T) {
	_, ts := newTestServer(t)
	client := newTestClient(t, ts.URL)

	_, err := client.client.RegisterBlackbox(ctxBG(), client.blackboxID, "alias", "owner", "owner@example.org",
		"amd64", "amd64", "node", "linux-amd64", "amd64")
	require.NoError(t, err)

	_, err = client.client.RegisterBlackbox(ctxBG(), client.blackboxID, "alias", "owner", "owner@example.org",
		"amd64", "amd64", "node", "linux-amd64", "amd64")
	require.Error(t, err)
}

func TestRegisterBlackbox_RemoteFailureLeavesLocalStoreUntouched(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1/unreachable")

	_, err := client.client.RegisterBlackbox(ctxBG(), client.blackboxID, "alias", "owner", "owner@example.org",
		"amd64", "amd64", "node", "linux-amd64", "amd64")
	require.ErrorIs(t, err, storeerrors.ErrRemoteUnavailable)
	require.Contains(t, err.Error(), "http://127.0.0.1:1/unreachable")

	var count int
	require.NoError(t, client.store.DB().QueryRow(`select count(*) from notary`).Scan(&count))
	require.Equal(t, 0, count)
}

func TestNotarizeSereboBB_AppendsLocalRecordOnSuccess(t *testing.T) {
	_, ts := newTestServer(t)
	client := newTestClient(t, ts.URL)

	reg, err := client.client.RegisterBlackbox(ctxBG(), client.blackboxID, "alias", "owner", "owner@example.org",
		"amd64", "amd64", "node", "linux-amd64", "amd64")
	require.NoError(t, err)

	_, err = client.client.NotarizeSereboBB(ctxBG(), client.blackboxID, reg.NotaryAuthorization)
	require.NoError(t, err)

	var count int
	require.NoError(t, client.store.DB().QueryRow(
		`select count(*) from datalog where description like 'Notarization with SEREBO Notary%'`).Scan(&count))
	require.Equal(t, 1, count)
}
