package imap

import (
	"context"
	"log"

	goimap "github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"

	"github.com/briefkasten-app/briefkasten/internal/enum"
	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
)

// SetFlag toggles \Seen or \Flagged on the server, then mirrors the change
// locally. The local row is only touched after the server confirms, so a
// failed store leaves both sides consistent. Callers that update their UI
// optimistically revert on error.
func (s *syncService) SetFlag(ctx context.Context, accountID, folder string, uid uint32, flag enum.EmailFlag, value bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.SetFlag")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.SetTag("folder", folder)
	span.SetTag("uid", uid)
	span.SetTag("flag", flag)
	span.SetTag("value", value)

	email, account, err := s.loadEmailAndAccount(ctx, accountID, folder, uid)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	imapFlag := flag.ImapFlag()
	err = s.sessions.withSession(ctx, account, func(c remoteClient) error {
		serverPath, pathErr := s.serverPathFor(ctx, c, folder)
		if pathErr != nil {
			return pathErr
		}
		if _, selErr := c.Select(serverPath, false); selErr != nil {
			return selErr
		}

		seqset := new(goimap.SeqSet)
		seqset.AddNum(uid)

		op := goimap.FlagsOp(goimap.AddFlags)
		if !value {
			op = goimap.RemoveFlags
		}
		item := goimap.FormatFlagsOp(op, true)
		return c.UidStore(seqset, item, []interface{}{imapFlag}, nil)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	flags := NewFlagSet(email.RawFlags)
	isRead := flags.IsRead()
	isFlagged := flags.IsFlagged()
	rawFlags := updateRawFlags(email.RawFlags, imapFlag, value)
	switch flag {
	case enum.EmailFlagRead:
		isRead = value
	case enum.EmailFlagFlagged:
		isFlagged = value
	}

	if err := s.repositories.EmailRepository.UpdateFlags(ctx, accountID, folder, uid, isRead, isFlagged, rawFlags); err != nil {
		tracing.TraceErr(span, err)
		return &er.StorageError{Err: err}
	}
	return nil
}

// DeleteEmail flags the message \Deleted, expunges the folder, and removes
// the local row. Server first; an expunge failure leaves the local copy in
// place for the next sync pass to reconcile.
func (s *syncService) DeleteEmail(ctx context.Context, accountID, folder string, uid uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.DeleteEmail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.SetTag("folder", folder)
	span.SetTag("uid", uid)

	_, account, err := s.loadEmailAndAccount(ctx, accountID, folder, uid)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	err = s.sessions.withSession(ctx, account, func(c remoteClient) error {
		serverPath, pathErr := s.serverPathFor(ctx, c, folder)
		if pathErr != nil {
			return pathErr
		}
		if _, selErr := c.Select(serverPath, false); selErr != nil {
			return selErr
		}

		seqset := new(goimap.SeqSet)
		seqset.AddNum(uid)

		item := goimap.FormatFlagsOp(goimap.AddFlags, true)
		if storeErr := c.UidStore(seqset, item, []interface{}{goimap.DeletedFlag}, nil); storeErr != nil {
			return storeErr
		}
		return c.Expunge()
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.repositories.EmailRepository.DeleteByUIDs(ctx, accountID, folder, []uint32{uid}); err != nil {
		tracing.TraceErr(span, err)
		return &er.StorageError{Err: err}
	}

	log.Printf("[%s][%s] Deleted message uid %d", accountID, folder, uid)
	return nil
}

// TestConnection dials, authenticates, and logs out. Used by account setup
// to validate credentials before the first sync.
func (s *syncService) TestConnection(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncService.TestConnection")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	account, err := s.repositories.AccountRepository.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	err = s.sessions.withSession(ctx, account, func(c remoteClient) error {
		_, listErr := c.ListFolders()
		return listErr
	})
	if err != nil {
		tracing.TraceErr(span, err)
		if statusErr := s.repositories.AccountRepository.UpdateConnectionStatus(ctx, accountID, enum.ConnectionStatusNotActive, err.Error()); statusErr != nil {
			log.Printf("[%s] Error updating connection status: %v", accountID, statusErr)
		}
		return err
	}

	if statusErr := s.repositories.AccountRepository.UpdateConnectionStatus(ctx, accountID, enum.ConnectionStatusActive, ""); statusErr != nil {
		log.Printf("[%s] Error updating connection status: %v", accountID, statusErr)
	}
	return nil
}

func (s *syncService) loadEmailAndAccount(ctx context.Context, accountID, folder string, uid uint32) (*models.Email, *models.Account, error) {
	email, err := s.repositories.EmailRepository.GetByUID(ctx, accountID, folder, uid)
	if err != nil {
		return nil, nil, err
	}
	if email == nil {
		return nil, nil, er.ErrEmailNotFound
	}

	account, err := s.repositories.AccountRepository.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	return email, account, nil
}

// serverPathFor reverse-maps a local display folder to its server path via a
// fresh LIST. Folder hierarchies change rarely but they do change, a stale
// mapping would address the wrong folder.
func (s *syncService) serverPathFor(ctx context.Context, c remoteClient, localFolder string) (string, error) {
	infos, err := c.ListFolders()
	if err != nil {
		return "", err
	}

	for serverPath, resolved := range s.resolver.Map(infos) {
		if resolved == localFolder {
			return serverPath, nil
		}
	}
	return "", er.ErrFolderNotFound
}

func updateRawFlags(flags []string, flag string, present bool) []string {
	result := make([]string, 0, len(flags)+1)
	for _, f := range flags {
		if f != flag {
			result = append(result, f)
		}
	}
	if present {
		result = append(result, flag)
	}
	return result
}
