package imap

import (
	"context"
	"errors"
	"testing"

	goimap "github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	er "github.com/briefkasten-app/briefkasten/internal/errors"
)

func TestSyncAccountInitialAndIncremental(t *testing.T) {
	remote := newFakeRemote()
	inbox := remote.addFolder("INBOX", ".")
	inbox.addMessage(100, "Erste Mail", "alice", "example.org")
	inbox.addMessage(101, "Zweite Mail", "bob", "example.org")
	inbox.addMessage(102, "Dritte Mail", "carol", "example.org")

	service, repos, account := newTestService(remote)
	ctx := context.Background()

	result, err := service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 3, result.EmailsSynced)

	emails, err := repos.EmailRepository.ListByAccount(ctx, account.ID, "Posteingang", 0, 0)
	require.NoError(t, err)
	require.Len(t, emails, 3)
	for _, email := range emails {
		assert.Equal(t, "Posteingang", email.Folder)
	}

	state, err := repos.FolderSyncStateRepository.Get(ctx, account.ID, "Posteingang")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, uint32(102), state.LastUID)

	updated, err := repos.AccountRepository.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(102), updated.LastSyncUID)
	require.NotNil(t, updated.LastSyncedAt)

	// Second pass with no server change fetches nothing new.
	result, err = service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.EmailsSynced)

	emails, err = repos.EmailRepository.ListByAccount(ctx, account.ID, "Posteingang", 0, 0)
	require.NoError(t, err)
	assert.Len(t, emails, 3)
}

func TestSyncFetchesByUIDNotSequenceNumber(t *testing.T) {
	remote := newFakeRemote()
	inbox := remote.addFolder("INBOX", ".")
	// Two messages whose uids far exceed the folder's sequence count.
	inbox.addMessage(179474, "Hohe UID eins", "alice", "example.org")
	inbox.addMessage(179475, "Hohe UID zwei", "bob", "example.org")

	service, repos, account := newTestService(remote)
	ctx := context.Background()

	result, err := service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.EmailsSynced)

	uids, err := repos.EmailRepository.GetUIDsByFolder(ctx, account.ID, "Posteingang")
	require.NoError(t, err)
	assert.Equal(t, []uint32{179474, 179475}, uids)
}

func TestSyncRemovesMessagesDeletedOnServer(t *testing.T) {
	remote := newFakeRemote()
	inbox := remote.addFolder("INBOX", ".")
	inbox.addMessage(10, "Bleibt", "alice", "example.org")
	inbox.addMessage(11, "Verschwindet", "bob", "example.org")

	service, repos, account := newTestService(remote)
	ctx := context.Background()

	_, err := service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)

	delete(inbox.messages, 11)

	_, err = service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)

	uids, err := repos.EmailRepository.GetUIDsByFolder(ctx, account.ID, "Posteingang")
	require.NoError(t, err)
	assert.Equal(t, []uint32{10}, uids)
}

func TestSyncSkipsUnparseableMessages(t *testing.T) {
	remote := newFakeRemote()
	inbox := remote.addFolder("INBOX", ".")
	inbox.addMessage(1, "Gut", "alice", "example.org")
	inbox.messages[2] = &fakeMessage{} // no envelope, no body
	inbox.addMessage(3, "Auch gut", "bob", "example.org")

	service, repos, account := newTestService(remote)
	ctx := context.Background()

	result, err := service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 2, result.EmailsSynced)

	uids, err := repos.EmailRepository.GetUIDsByFolder(ctx, account.ID, "Posteingang")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3}, uids)
}

func TestSyncInterruptedPassResumesWithoutDuplicates(t *testing.T) {
	remote := newFakeRemote()
	inbox := remote.addFolder("INBOX", ".")
	inbox.addMessage(100, "Posteingang eins", "alice", "example.org")
	inbox.addMessage(101, "Posteingang zwei", "bob", "example.org")
	work := remote.addFolder("Work", ".")
	work.addMessage(5, "Projekt", "carol", "example.org")

	service, repos, account := newTestService(remote)
	ctx := context.Background()

	// INBOX sorts before Work, so the failure hits after INBOX committed.
	remote.selectErr["Work"] = er.NewConnectionError(er.ReasonNetwork, errors.New("connection reset"))

	result, err := service.SyncAccount(ctx, account.ID)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.EmailsSynced)

	inboxUIDs, err := repos.EmailRepository.GetUIDsByFolder(ctx, account.ID, "Posteingang")
	require.NoError(t, err)
	assert.Equal(t, []uint32{100, 101}, inboxUIDs)

	// Retry after the network recovers: INBOX is not re-fetched, Work is.
	delete(remote.selectErr, "Work")

	result, err = service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EmailsSynced)

	inboxUIDs, err = repos.EmailRepository.GetUIDsByFolder(ctx, account.ID, "Posteingang")
	require.NoError(t, err)
	assert.Equal(t, []uint32{100, 101}, inboxUIDs)

	workUIDs, err := repos.EmailRepository.GetUIDsByFolder(ctx, account.ID, "Work")
	require.NoError(t, err)
	assert.Equal(t, []uint32{5}, workUIDs)
}

func TestSyncRefreshesFlagsOfExistingMessages(t *testing.T) {
	remote := newFakeRemote()
	inbox := remote.addFolder("INBOX", ".")
	msg := inbox.addMessage(50, "Wird gelesen", "alice", "example.org")

	service, repos, account := newTestService(remote)
	ctx := context.Background()

	_, err := service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)

	stored, err := repos.EmailRepository.GetByUID(ctx, account.ID, "Posteingang", 50)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsRead)

	// Another client marks the message read on the server.
	msg.flags = append(msg.flags, goimap.SeenFlag)

	_, err = service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)

	stored, err = repos.EmailRepository.GetByUID(ctx, account.ID, "Posteingang", 50)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsRead)
}

func TestSyncRejectsConcurrentPass(t *testing.T) {
	remote := newFakeRemote()
	remote.addFolder("INBOX", ".")

	service, _, account := newTestService(remote)

	require.NoError(t, service.registry.begin(account.ID))
	defer service.registry.end(account.ID)

	_, err := service.SyncAccount(context.Background(), account.ID)
	assert.Equal(t, er.ErrSyncInProgress, err)
}

func TestSyncRefreshesQuota(t *testing.T) {
	remote := newFakeRemote()
	remote.addFolder("INBOX", ".")
	remote.quotaUsed = 512 * 1024 * 1024
	remote.quotaTotal = 1024 * 1024 * 1024

	service, repos, account := newTestService(remote)
	ctx := context.Background()

	_, err := service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)

	updated, err := repos.AccountRepository.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(512*1024*1024), updated.StorageUsed)
	assert.Equal(t, int64(1024*1024*1024), updated.StorageTotal)
}

func TestSyncQuotaFailureIsNotFatal(t *testing.T) {
	remote := newFakeRemote()
	inbox := remote.addFolder("INBOX", ".")
	inbox.addMessage(1, "Mail", "alice", "example.org")
	remote.quotaErr = &er.ProtocolError{Err: errors.New("QUOTA not supported")}

	service, _, account := newTestService(remote)

	result, err := service.SyncAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.EmailsSynced)
}

func TestSyncCursorNeverMovesBackwards(t *testing.T) {
	remote := newFakeRemote()
	inbox := remote.addFolder("INBOX", ".")
	inbox.addMessage(200, "Neu", "alice", "example.org")

	service, repos, account := newTestService(remote)
	ctx := context.Background()

	_, err := service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)

	// A gap-fill below the high-water mark must not reset the cursor.
	inbox.addMessage(150, "Nachzügler", "bob", "example.org")

	_, err = service.SyncAccount(ctx, account.ID)
	require.NoError(t, err)

	state, err := repos.FolderSyncStateRepository.Get(ctx, account.ID, "Posteingang")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, uint32(200), state.LastUID)

	uids, err := repos.EmailRepository.GetUIDsByFolder(ctx, account.ID, "Posteingang")
	require.NoError(t, err)
	assert.Equal(t, []uint32{150, 200}, uids)
}

func TestSyncCanceledBetweenFolders(t *testing.T) {
	remote := newFakeRemote()
	remote.addFolder("INBOX", ".")

	service, _, account := newTestService(remote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := service.SyncAccount(ctx, account.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}
