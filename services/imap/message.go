package imap

import (
	"bytes"
	"io"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/customeros/mailsherpa/mailvalidate"
	goimap "github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/lib/pq"

	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/models"
)

// FlagSet answers membership questions about a message's flags without
// caring how the remote library shaped them. Different library versions hand
// back different containers; membership is the only operation we rely on.
type FlagSet struct {
	flags map[string]struct{}
}

func NewFlagSet(flags []string) FlagSet {
	if len(flags) == 0 {
		return FlagSet{}
	}
	set := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		set[f] = struct{}{}
	}
	return FlagSet{flags: set}
}

// Has reports whether flag is present. A zero FlagSet has nothing.
func (s FlagSet) Has(flag string) bool {
	if s.flags == nil {
		return false
	}
	_, ok := s.flags[flag]
	return ok
}

func (s FlagSet) IsRead() bool {
	return s.Has(goimap.SeenFlag)
}

func (s FlagSet) IsFlagged() bool {
	return s.Has(goimap.FlaggedFlag)
}

// parseMessage normalizes one fetched message into an email row. The UID
// comes from the fetch response, not the request, so a server echoing a
// different UID cannot mis-key the row.
func parseMessage(accountID, folder string, msg *goimap.Message) (*models.Email, error) {
	if msg == nil || msg.Uid == 0 {
		return nil, &er.ParseError{Err: io.ErrUnexpectedEOF}
	}

	email := &models.Email{
		AccountID: accountID,
		Folder:    folder,
		UID:       msg.Uid,
	}

	flags := NewFlagSet(msg.Flags)
	email.IsRead = flags.IsRead()
	email.IsFlagged = flags.IsFlagged()
	email.RawFlags = pq.StringArray(msg.Flags)

	if msg.Envelope != nil {
		email.Subject = msg.Envelope.Subject
		if !msg.Envelope.Date.IsZero() {
			sentAt := msg.Envelope.Date.UTC()
			email.SentAt = &sentAt
		}
		if len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
			from := msg.Envelope.From[0]
			email.Sender = from.PersonalName
			email.SenderEmail = normalizeAddress(from.Address())
			if email.Sender == "" {
				email.Sender = email.SenderEmail
			}
		}
	}

	raw := extractFullMessage(msg)
	if len(raw) > 0 {
		parseBody(email, raw)
	}

	if email.Subject == "" && email.SenderEmail == "" && len(raw) == 0 {
		return nil, &er.ParseError{UID: msg.Uid, Err: io.ErrUnexpectedEOF}
	}

	return email, nil
}

// extractFullMessage pulls the entire-message literal out of the fetch
// response body sections.
func extractFullMessage(msg *goimap.Message) []byte {
	var buf bytes.Buffer

	for section, literal := range msg.Body {
		if section.Peek {
			continue
		}
		if len(section.Path) == 0 && section.Specifier == goimap.EntireSpecifier {
			data, err := io.ReadAll(literal)
			if err == nil {
				buf.Write(data)
				break
			}
		}
	}

	return buf.Bytes()
}

func parseBody(email *models.Email, raw []byte) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		log.Printf("Error parsing message body with enmime: %v", err)
		return
	}

	email.BodyText = envelope.Text
	email.BodyHTML = envelope.HTML

	if email.BodyText == "" && email.BodyHTML != "" {
		email.BodyText = htmlToText(email.BodyHTML)
	}
}

// htmlToText strips markup for HTML-only messages so search and AI
// categorization always have a text body to work with.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	return strings.TrimSpace(doc.Text())
}

func normalizeAddress(address string) string {
	validation := mailvalidate.ValidateEmailSyntax(address)
	if !validation.IsValid {
		return strings.ToLower(strings.TrimSpace(address))
	}
	return validation.CleanEmail
}
