package imap

import (
	"context"
	"log"
	"sort"

	goimap "github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"

	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
	"github.com/briefkasten-app/briefkasten/services/events"
)

const (
	// fetchBatchSize bounds one UID FETCH so a huge backlog cannot pin the
	// connection or the parser for minutes.
	fetchBatchSize = 20

	// maxMessagesPerSync caps one folder pass; the rest is picked up by the
	// next pass from the advanced cursor.
	maxMessagesPerSync = 50000
)

func fetchItems() []goimap.FetchItem {
	return []goimap.FetchItem{
		goimap.FetchEnvelope,
		goimap.FetchFlags,
		goimap.FetchBodyStructure,
		"BODY.PEEK[]",
		goimap.FetchUid,
	}
}

// fetchAndCommitBatch fetches one bounded batch of UIDs and commits each
// parsed message individually. Messages that fail to parse are skipped and
// logged; storage failures abort the batch, nothing useful can follow them.
func (s *syncService) fetchAndCommitBatch(ctx context.Context, c remoteClient, account *models.Account, serverPath, localFolder string, uids []uint32) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.fetchAndCommitBatch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("folder", localFolder)
	span.SetTag("batch.size", len(uids))

	if len(uids) == 0 {
		return 0, nil
	}

	seqset := new(goimap.SeqSet)
	for _, uid := range uids {
		seqset.AddNum(uid)
	}

	messages := make(chan *goimap.Message, fetchBatchSize)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, fetchItems(), messages)
	}()

	synced := 0
	var commitErr error
	for msg := range messages {
		if commitErr != nil {
			continue // drain the channel so the fetch goroutine can finish
		}

		email, err := parseMessage(account.ID, localFolder, msg)
		if err != nil {
			log.Printf("[%s][%s] Skipping unparseable message: %v", account.ID, localFolder, err)
			tracing.TraceErr(span, err)
			continue
		}

		if err := s.repositories.EmailRepository.Upsert(ctx, email); err != nil {
			commitErr = &er.StorageError{Err: err}
			continue
		}
		synced++

		s.publishEmailReceived(ctx, email)
	}

	if err := <-done; err != nil && commitErr == nil {
		tracing.TraceErr(span, err)
		return synced, &er.ProtocolError{Err: err}
	}
	if commitErr != nil {
		tracing.TraceErr(span, commitErr)
		return synced, commitErr
	}

	return synced, nil
}

func (s *syncService) publishEmailReceived(ctx context.Context, email *models.Email) {
	if s.publisher == nil {
		return
	}

	event := events.EmailReceivedEvent{
		AccountID:   email.AccountID,
		Folder:      email.Folder,
		UID:         email.UID,
		Subject:     email.Subject,
		SenderEmail: email.SenderEmail,
		SentAt:      email.SentAt,
	}
	if err := s.publisher.PublishEmailReceived(ctx, event); err != nil {
		// Events are advisory, a broker outage must not fail the sync.
		log.Printf("[%s][%s] Error publishing email event: %v", email.AccountID, email.Folder, err)
	}
}

// refreshFlags re-reads the flags of already-stored messages so local
// isRead/isFlagged mirrors catch up with changes made from other clients.
func (s *syncService) refreshFlags(ctx context.Context, c remoteClient, account *models.Account, localFolder string, uids []uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.refreshFlags")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("folder", localFolder)
	span.SetTag("uids", len(uids))

	if len(uids) == 0 {
		return nil
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	seqset := new(goimap.SeqSet)
	for _, uid := range uids {
		seqset.AddNum(uid)
	}

	messages := make(chan *goimap.Message, fetchBatchSize)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []goimap.FetchItem{goimap.FetchFlags, goimap.FetchUid}, messages)
	}()

	for msg := range messages {
		if msg == nil || msg.Uid == 0 {
			continue
		}
		flags := NewFlagSet(msg.Flags)
		err := s.repositories.EmailRepository.UpdateFlags(ctx, account.ID, localFolder, msg.Uid, flags.IsRead(), flags.IsFlagged(), msg.Flags)
		if err != nil {
			log.Printf("[%s][%s] Error refreshing flags for uid %d: %v", account.ID, localFolder, msg.Uid, err)
			tracing.TraceErr(span, err)
		}
	}

	if err := <-done; err != nil {
		tracing.TraceErr(span, err)
		return &er.ProtocolError{Err: err}
	}
	return nil
}
