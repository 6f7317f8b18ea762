package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	quota "github.com/emersion/go-imap-quota"
	"github.com/opentracing/opentracing-go"

	"github.com/briefkasten-app/briefkasten/internal/enum"
	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
)

// remoteClient is the slice of an IMAP session the sync engine needs. It
// exposes UID-based commands only; sequence-number variants are deliberately
// absent so every fetch and store is addressed by stable UIDs.
type remoteClient interface {
	ListFolders() ([]*imap.MailboxInfo, error)
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Expunge() error
	QuotaUsage() (usedBytes, totalBytes int64, err error)
	Logout() error
}

// dialFunc opens a logged-in session for an account. Swappable in tests.
type dialFunc func(ctx context.Context, account *models.Account, timeout time.Duration) (remoteClient, error)

type imapRemote struct {
	c       *client.Client
	timeout time.Duration
}

func dialAccount(ctx context.Context, account *models.Account, timeout time.Duration) (remoteClient, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapRemote.dial")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("server", account.ImapServer)
	span.SetTag("port", account.ImapPort)

	serverAddr := fmt.Sprintf("%s:%d", account.ImapServer, account.ImapPort)

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error

	if account.ImapSecurity == enum.EmailSecurityTLS {
		tlsConfig := &tls.Config{
			ServerName: account.ImapServer,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, classifyDialErr(err)
	}

	c.Timeout = timeout
	if err = c.Login(account.ImapUsername, account.ImapPassword); err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return nil, er.NewConnectionError(er.ReasonAuth, err)
	}
	c.Timeout = 0

	log.Printf("[%s] Connected and logged in to %s", account.ID, serverAddr)
	return &imapRemote{c: c, timeout: timeout}, nil
}

func (r *imapRemote) ListFolders() ([]*imap.MailboxInfo, error) {
	mailboxes := make(chan *imap.MailboxInfo, 50)
	done := make(chan error, 1)
	go func() {
		done <- r.c.List("", "*", mailboxes)
	}()

	var infos []*imap.MailboxInfo
	for m := range mailboxes {
		infos = append(infos, m)
	}
	if err := <-done; err != nil {
		return nil, &er.ProtocolError{Err: err}
	}
	return infos, nil
}

func (r *imapRemote) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	r.c.Timeout = r.timeout
	defer func() { r.c.Timeout = 0 }()

	status, err := r.c.Select(name, readOnly)
	if err != nil {
		return nil, &er.ProtocolError{Err: err}
	}
	return status, nil
}

func (r *imapRemote) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	r.c.Timeout = r.timeout
	defer func() { r.c.Timeout = 0 }()

	uids, err := r.c.UidSearch(criteria)
	if err != nil {
		return nil, &er.ProtocolError{Err: err}
	}
	return uids, nil
}

func (r *imapRemote) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	return r.c.UidFetch(seqset, items, ch)
}

func (r *imapRemote) UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	r.c.Timeout = r.timeout
	defer func() { r.c.Timeout = 0 }()

	return r.c.UidStore(seqset, item, value, ch)
}

func (r *imapRemote) Expunge() error {
	r.c.Timeout = r.timeout
	defer func() { r.c.Timeout = 0 }()

	return r.c.Expunge(nil)
}

// QuotaUsage reads the STORAGE resource of the INBOX quota root. Servers
// report it in units of 1024 octets (RFC 2087).
func (r *imapRemote) QuotaUsage() (int64, int64, error) {
	qc := quota.NewClient(r.c)

	statuses, err := qc.GetQuotaRoot("INBOX")
	if err != nil {
		return 0, 0, &er.ProtocolError{Err: err}
	}
	for _, status := range statuses {
		if res, ok := status.Resources["STORAGE"]; ok {
			return int64(res[0]) * 1024, int64(res[1]) * 1024, nil
		}
	}
	return 0, 0, nil
}

func (r *imapRemote) Logout() error {
	return r.c.Logout()
}

// classifyDialErr maps transport failures onto the connection error taxonomy
// so the session layer can decide what is worth retrying.
func classifyDialErr(err error) error {
	if err == nil {
		return nil
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return er.NewConnectionError(er.ReasonTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tls") || strings.Contains(msg, "certificate") || strings.Contains(msg, "x509"):
		return er.NewConnectionError(er.ReasonTLS, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return er.NewConnectionError(er.ReasonTimeout, err)
	default:
		return er.NewConnectionError(er.ReasonNetwork, err)
	}
}

// sessionManager opens one session per operation and always tears it down.
type sessionManager struct {
	dial    dialFunc
	timeout time.Duration
}

func newSessionManager(timeout time.Duration) *sessionManager {
	return &sessionManager{dial: dialAccount, timeout: timeout}
}

// withSession runs fn inside a fresh logged-in session. Retryable connection
// failures (timeout, network, TLS) get one reconnect attempt; authentication
// failures never do, wrong credentials will not fix themselves.
func (m *sessionManager) withSession(ctx context.Context, account *models.Account, fn func(remoteClient) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sessionManager.withSession")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	c, err := m.dial(ctx, account, m.timeout)
	if err != nil {
		if connErr, ok := er.AsConnectionError(err); ok && connErr.Retryable() {
			log.Printf("[%s] Connection failed (%s), retrying once: %v", account.ID, connErr.Reason, err)
			c, err = m.dial(ctx, account, m.timeout)
		}
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}
	defer c.Logout()

	return fn(c)
}
