package imap

import (
	"context"
	"log"
	"sort"

	goimap "github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/enum"
	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
	"github.com/briefkasten-app/briefkasten/internal/utils"
)

// SyncAccount runs one incremental sync pass over every folder of the
// account. Partial progress is kept: committed batches stay committed even
// when a later folder fails. A concurrent pass for the same account is
// rejected with ErrSyncInProgress.
func (s *syncService) SyncAccount(ctx context.Context, accountID string) (*interfaces.SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.SyncAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	if err := s.registry.begin(accountID); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer s.registry.end(accountID)

	account, err := s.repositories.AccountRepository.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	totalSynced := 0
	err = s.sessions.withSession(ctx, account, func(c remoteClient) error {
		infos, listErr := c.ListFolders()
		if listErr != nil {
			return listErr
		}

		resolved := s.resolver.Map(infos)
		if regErr := s.resolver.RegisterCategories(ctx, s.repositories.CategoryRepository, resolved); regErr != nil {
			log.Printf("[%s] Error registering folder categories: %v", accountID, regErr)
		}

		s.refreshQuota(ctx, c, account)

		// Deterministic folder order, so an interrupted pass resumes
		// predictably.
		serverPaths := make([]string, 0, len(resolved))
		for serverPath := range resolved {
			serverPaths = append(serverPaths, serverPath)
		}
		sort.Strings(serverPaths)

		for _, serverPath := range serverPaths {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			synced, folderErr := s.syncFolder(ctx, c, account, serverPath, resolved[serverPath])
			totalSynced += synced
			if folderErr != nil {
				if _, isConn := er.AsConnectionError(folderErr); isConn || er.IsStorageError(folderErr) {
					return folderErr
				}
				// Protocol trouble in one folder must not starve the rest.
				log.Printf("[%s][%s] Error syncing folder, continuing: %v", accountID, serverPath, folderErr)
				tracing.TraceErr(span, folderErr)
			}
		}

		return nil
	})

	if err != nil {
		tracing.TraceErr(span, err)
		if statusErr := s.repositories.AccountRepository.UpdateConnectionStatus(ctx, accountID, enum.ConnectionStatusNotActive, err.Error()); statusErr != nil {
			log.Printf("[%s] Error updating connection status: %v", accountID, statusErr)
		}
		return &interfaces.SyncResult{Success: false, EmailsSynced: totalSynced, Error: err.Error()}, err
	}

	s.updateAccountCursor(ctx, account)
	if statusErr := s.repositories.AccountRepository.UpdateConnectionStatus(ctx, accountID, enum.ConnectionStatusActive, ""); statusErr != nil {
		log.Printf("[%s] Error updating connection status: %v", accountID, statusErr)
	}

	log.Printf("[%s] Sync complete, %d emails synced", accountID, totalSynced)
	span.SetTag("emails.synced", totalSynced)

	return &interfaces.SyncResult{Success: true, EmailsSynced: totalSynced}, nil
}

// syncFolder reconciles one folder: deletes rows the server no longer has,
// refreshes flags on survivors, fetches what is missing locally, and
// advances the cursor after each committed batch.
func (s *syncService) syncFolder(ctx context.Context, c remoteClient, account *models.Account, serverPath, localFolder string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.syncFolder")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("folder.server", serverPath)
	span.SetTag("folder.local", localFolder)

	mbox, err := c.Select(serverPath, false)
	if err != nil {
		return 0, err
	}
	log.Printf("[%s][%s] Selected folder - Messages: %d, Recent: %d, Unseen: %d",
		account.ID, localFolder, mbox.Messages, mbox.Recent, mbox.Unseen)

	remoteUIDs, err := c.UidSearch(&goimap.SearchCriteria{})
	if err != nil {
		return 0, err
	}

	localUIDs, err := s.repositories.EmailRepository.GetUIDsByFolder(ctx, account.ID, localFolder)
	if err != nil {
		return 0, &er.StorageError{Err: err}
	}

	// Rows the server no longer has are gone for good.
	toDelete := utils.DiffUint32(localUIDs, remoteUIDs)
	if len(toDelete) > 0 {
		log.Printf("[%s][%s] Removing %d locally stored messages deleted on server", account.ID, localFolder, len(toDelete))
		if err := s.repositories.EmailRepository.DeleteByUIDs(ctx, account.ID, localFolder, toDelete); err != nil {
			return 0, &er.StorageError{Err: err}
		}
	}

	existing := utils.IntersectUint32(localUIDs, remoteUIDs)
	if err := s.refreshFlags(ctx, c, account, localFolder, existing); err != nil {
		log.Printf("[%s][%s] Error refreshing flags, continuing: %v", account.ID, localFolder, err)
		tracing.TraceErr(span, err)
	}

	toFetch := utils.DiffUint32(remoteUIDs, localUIDs)
	if len(toFetch) == 0 {
		span.SetTag("fetched", 0)
		return 0, nil
	}
	sort.Slice(toFetch, func(i, j int) bool { return toFetch[i] < toFetch[j] })
	if len(toFetch) > maxMessagesPerSync {
		log.Printf("[%s][%s] Capping sync at %d of %d pending messages", account.ID, localFolder, maxMessagesPerSync, len(toFetch))
		toFetch = toFetch[:maxMessagesPerSync]
	}

	synced := 0
	for start := 0; start < len(toFetch); start += fetchBatchSize {
		end := start + fetchBatchSize
		if end > len(toFetch) {
			end = len(toFetch)
		}
		batch := toFetch[start:end]

		batchSynced, batchErr := s.fetchAndCommitBatch(ctx, c, account, serverPath, localFolder, batch)
		synced += batchSynced
		if batchErr != nil {
			return synced, batchErr
		}

		// Batches arrive in ascending UID order; everything up to the batch
		// max is now durably committed (or knowingly skipped).
		s.saveCursor(ctx, account.ID, localFolder, batch[len(batch)-1])
	}

	span.SetTag("fetched", synced)
	return synced, nil
}

func (s *syncService) saveCursor(ctx context.Context, accountID, localFolder string, uid uint32) {
	err := s.repositories.FolderSyncStateRepository.Save(ctx, accountID, localFolder, uid, utils.Now())
	if err != nil {
		log.Printf("[%s][%s] Error saving sync cursor: %v", accountID, localFolder, err)
		return
	}
	log.Printf("[%s][%s] Updated last synced UID to %d", accountID, localFolder, uid)
}

// updateAccountCursor mirrors the per-folder cursors into the account row
// for the UI. The per-folder states stay authoritative.
func (s *syncService) updateAccountCursor(ctx context.Context, account *models.Account) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.updateAccountCursor")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	states, err := s.repositories.FolderSyncStateRepository.GetAllForAccount(ctx, account.ID)
	if err != nil {
		log.Printf("[%s] Error reading sync states: %v", account.ID, err)
		tracing.TraceErr(span, err)
		return
	}

	var maxUID uint32
	for _, state := range states {
		if state.LastUID > maxUID {
			maxUID = state.LastUID
		}
	}

	if err := s.repositories.AccountRepository.UpdateSyncState(ctx, account.ID, maxUID, utils.Now()); err != nil {
		log.Printf("[%s] Error updating account sync state: %v", account.ID, err)
		tracing.TraceErr(span, err)
	}
}

// refreshQuota reads the mailbox quota once per pass. Quota is advisory;
// servers without the extension just leave the stored values alone.
func (s *syncService) refreshQuota(ctx context.Context, c remoteClient, account *models.Account) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.refreshQuota")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	used, total, err := c.QuotaUsage()
	if err != nil {
		log.Printf("[%s] Quota not available: %v", account.ID, err)
		return
	}
	if total == 0 && used == 0 {
		return
	}

	if err := s.repositories.AccountRepository.UpdateQuota(ctx, account.ID, used, total); err != nil {
		log.Printf("[%s] Error updating quota: %v", account.ID, err)
		tracing.TraceErr(span, err)
	}
}

// SyncAll runs one pass over every account, sequentially. Accounts already
// syncing are skipped, everything else reports its own result.
func (s *syncService) SyncAll(ctx context.Context) map[string]*interfaces.SyncResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.SyncAll")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	results := make(map[string]*interfaces.SyncResult)

	accounts, err := s.repositories.AccountRepository.GetAll(ctx)
	if err != nil {
		s.log.Errorf("Error listing accounts for sync: %v", err)
		tracing.TraceErr(span, err)
		return results
	}
	s.log.Infof("Starting sync pass for %d accounts", len(accounts))

	for _, account := range accounts {
		result, syncErr := s.SyncAccount(ctx, account.ID)
		if syncErr != nil {
			if result == nil {
				result = &interfaces.SyncResult{Success: false, Error: syncErr.Error()}
			}
		}
		results[account.ID] = result

		if ctx.Err() != nil {
			break
		}
	}

	return results
}
