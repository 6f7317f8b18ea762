package imap

import (
	"context"
	"errors"
	"testing"

	goimap "github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefkasten-app/briefkasten/internal/enum"
	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/utils"
)

func syncedAccount(t *testing.T) (*fakeRemote, *syncService, string) {
	t.Helper()

	remote := newFakeRemote()
	inbox := remote.addFolder("INBOX", ".")
	inbox.addMessage(100, "Wichtig", "alice", "example.org")

	service, _, account := newTestService(remote)
	_, err := service.SyncAccount(context.Background(), account.ID)
	require.NoError(t, err)

	return remote, service, account.ID
}

func TestSetFlagMarksReadOnServerAndLocally(t *testing.T) {
	remote, service, accountID := syncedAccount(t)
	ctx := context.Background()

	err := service.SetFlag(ctx, accountID, "Posteingang", 100, enum.EmailFlagRead, true)
	require.NoError(t, err)

	require.Len(t, remote.storeCalls, 1)
	assert.Equal(t, []string{goimap.SeenFlag}, remote.storeCalls[0].flags)
	assert.True(t, utils.IsStringInSlice(goimap.SeenFlag, remote.folders["INBOX"].messages[100].flags))

	stored, err := service.repositories.EmailRepository.GetByUID(ctx, accountID, "Posteingang", 100)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsRead)
	assert.Contains(t, []string(stored.RawFlags), goimap.SeenFlag)
}

func TestSetFlagClearsFlagged(t *testing.T) {
	remote, service, accountID := syncedAccount(t)
	ctx := context.Background()

	require.NoError(t, service.SetFlag(ctx, accountID, "Posteingang", 100, enum.EmailFlagFlagged, true))
	require.NoError(t, service.SetFlag(ctx, accountID, "Posteingang", 100, enum.EmailFlagFlagged, false))

	assert.False(t, utils.IsStringInSlice(goimap.FlaggedFlag, remote.folders["INBOX"].messages[100].flags))

	stored, err := service.repositories.EmailRepository.GetByUID(ctx, accountID, "Posteingang", 100)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsFlagged)
	assert.NotContains(t, []string(stored.RawFlags), goimap.FlaggedFlag)
}

func TestSetFlagServerFailureLeavesLocalUntouched(t *testing.T) {
	remote, service, accountID := syncedAccount(t)
	ctx := context.Background()

	remote.storeErr = &er.ProtocolError{Err: errors.New("STORE rejected")}

	err := service.SetFlag(ctx, accountID, "Posteingang", 100, enum.EmailFlagRead, true)
	require.Error(t, err)

	stored, err := service.repositories.EmailRepository.GetByUID(ctx, accountID, "Posteingang", 100)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsRead)
}

func TestSetFlagUnknownEmail(t *testing.T) {
	_, service, accountID := syncedAccount(t)

	err := service.SetFlag(context.Background(), accountID, "Posteingang", 999, enum.EmailFlagRead, true)
	assert.Equal(t, er.ErrEmailNotFound, err)
}

func TestDeleteEmailRemovesServerAndLocalCopy(t *testing.T) {
	remote, service, accountID := syncedAccount(t)
	ctx := context.Background()

	err := service.DeleteEmail(ctx, accountID, "Posteingang", 100)
	require.NoError(t, err)

	_, stillThere := remote.folders["INBOX"].messages[100]
	assert.False(t, stillThere)

	stored, err := service.repositories.EmailRepository.GetByUID(ctx, accountID, "Posteingang", 100)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestDeleteEmailServerFailureKeepsLocalCopy(t *testing.T) {
	remote, service, accountID := syncedAccount(t)
	ctx := context.Background()

	remote.storeErr = &er.ProtocolError{Err: errors.New("STORE rejected")}

	err := service.DeleteEmail(ctx, accountID, "Posteingang", 100)
	require.Error(t, err)

	stored, err := service.repositories.EmailRepository.GetByUID(ctx, accountID, "Posteingang", 100)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestDeleteEmailUnknownFolder(t *testing.T) {
	_, service, accountID := syncedAccount(t)

	err := service.DeleteEmail(context.Background(), accountID, "Niemandsland", 100)
	assert.Equal(t, er.ErrEmailNotFound, err)
}

func TestUpdateRawFlags(t *testing.T) {
	flags := []string{goimap.SeenFlag, "$Custom"}

	added := updateRawFlags(flags, goimap.FlaggedFlag, true)
	assert.ElementsMatch(t, []string{goimap.SeenFlag, "$Custom", goimap.FlaggedFlag}, added)

	removed := updateRawFlags(added, goimap.SeenFlag, false)
	assert.ElementsMatch(t, []string{"$Custom", goimap.FlaggedFlag}, removed)

	// Adding a flag twice keeps a single copy.
	again := updateRawFlags(added, goimap.FlaggedFlag, true)
	assert.ElementsMatch(t, []string{goimap.SeenFlag, "$Custom", goimap.FlaggedFlag}, again)
}

func TestTestConnectionUpdatesStatus(t *testing.T) {
	remote := newFakeRemote()
	remote.addFolder("INBOX", ".")

	service, repos, account := newTestService(remote)
	ctx := context.Background()

	require.NoError(t, service.TestConnection(ctx, account.ID))

	updated, err := repos.AccountRepository.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.ConnectionStatusActive, updated.ConnectionStatus)
	assert.Empty(t, updated.ErrorMessage)
}
