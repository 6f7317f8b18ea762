package imap

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
)

// CanonicalFolders names the well-known folders in the UI language. These
// are display names; the server-side paths stay untouched.
type CanonicalFolders struct {
	Inbox   string
	Sent    string
	Trash   string
	Spam    string
	Drafts  string
	Archive string
}

func DefaultCanonicalFolders() CanonicalFolders {
	return CanonicalFolders{
		Inbox:   "Posteingang",
		Sent:    "Gesendet",
		Trash:   "Papierkorb",
		Spam:    "Spam",
		Drafts:  "Entwürfe",
		Archive: "Archiv",
	}
}

// folderResolver maps server folder paths onto canonical local names.
type folderResolver struct {
	canonical CanonicalFolders
}

func newFolderResolver(canonical CanonicalFolders) *folderResolver {
	return &folderResolver{canonical: canonical}
}

// Map builds the serverPath -> localName table for one LIST response.
//
// The table is keyed by the full server path, never the leaf name: a
// top-level "Bondora" and a nested "INBOX.Bondora" are different folders and
// must stay distinct locally. Resolution order per folder:
//
//  1. Special-use attribute, when the server advertises one.
//  2. Well-known leaf names (sent, trash, spam, drafts, archive, inbox)
//     matched case-insensitively.
//  3. Inbox-rooted children keep their sub-path under the canonical inbox
//     name, rewritten with "/" ("INBOX.Bondora" -> "Posteingang/Bondora").
//  4. Everything else keeps its server path, with the server delimiter
//     rewritten to "/".
func (r *folderResolver) Map(infos []*imap.MailboxInfo) map[string]string {
	resolved := make(map[string]string, len(infos))

	for _, info := range infos {
		if info == nil || info.Name == "" {
			continue
		}
		if hasAttribute(info.Attributes, imap.NoSelectAttr) {
			continue
		}
		resolved[info.Name] = r.resolveOne(info)
	}

	return resolved
}

func (r *folderResolver) resolveOne(info *imap.MailboxInfo) string {
	if name, ok := r.bySpecialUse(info.Attributes); ok {
		return name
	}

	delimiter := info.Delimiter
	if delimiter == "" {
		delimiter = "."
	}
	segments := strings.Split(info.Name, delimiter)
	leaf := segments[len(segments)-1]

	if name, ok := r.byWellKnownName(leaf); ok && len(segments) == 1 {
		return name
	}
	if strings.EqualFold(segments[0], "INBOX") {
		if len(segments) == 1 {
			return r.canonical.Inbox
		}
		return r.canonical.Inbox + "/" + strings.Join(segments[1:], "/")
	}

	return strings.Join(segments, "/")
}

func (r *folderResolver) bySpecialUse(attributes []string) (string, bool) {
	for _, attr := range attributes {
		switch attr {
		case imap.SentAttr:
			return r.canonical.Sent, true
		case imap.TrashAttr:
			return r.canonical.Trash, true
		case imap.JunkAttr:
			return r.canonical.Spam, true
		case imap.DraftsAttr:
			return r.canonical.Drafts, true
		case imap.ArchiveAttr:
			return r.canonical.Archive, true
		}
	}
	return "", false
}

func (r *folderResolver) byWellKnownName(leaf string) (string, bool) {
	switch strings.ToLower(leaf) {
	case "inbox":
		return r.canonical.Inbox, true
	case "sent", "sent messages", "sent items", "gesendet", "gesendete objekte":
		return r.canonical.Sent, true
	case "trash", "deleted", "deleted items", "papierkorb", "gelöscht":
		return r.canonical.Trash, true
	case "junk", "spam", "bulk mail":
		return r.canonical.Spam, true
	case "drafts", "draft", "entwürfe":
		return r.canonical.Drafts, true
	case "archive", "archiv", "all mail":
		return r.canonical.Archive, true
	}
	return "", false
}

func hasAttribute(attributes []string, attr string) bool {
	for _, a := range attributes {
		if a == attr {
			return true
		}
	}
	return false
}

// RegisterCategories auto-discovers non-canonical folders as folder-typed
// categories. Custom categories that collide with a folder name are corrected
// to the folder type, the server wins over local labels.
func (r *folderResolver) RegisterCategories(ctx context.Context, categories interfaces.CategoryRepository, resolved map[string]string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderResolver.RegisterCategories")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	canonical := map[string]bool{
		r.canonical.Inbox:   true,
		r.canonical.Sent:    true,
		r.canonical.Trash:   true,
		r.canonical.Spam:    true,
		r.canonical.Drafts:  true,
		r.canonical.Archive: true,
	}

	seen := make(map[string]bool, len(resolved))
	names := make([]string, 0, len(resolved))
	for _, localName := range resolved {
		if !canonical[localName] && !seen[localName] {
			seen[localName] = true
			names = append(names, localName)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := categories.EnsureFolderCategory(ctx, name); err != nil {
			log.Printf("Error registering folder category %q: %v", name, err)
			tracing.TraceErr(span, err)
			return err
		}
	}
	return nil
}
