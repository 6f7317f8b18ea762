package enum

// EmailFlag identifies a user-mutable message flag. Each value maps to one
// IMAP system flag on the wire and one boolean column in the local store.
type EmailFlag string

const (
	EmailFlagRead    EmailFlag = "read"    // \Seen
	EmailFlagFlagged EmailFlag = "flagged" // \Flagged
)

func (e EmailFlag) String() string {
	return string(e)
}

// ImapFlag returns the wire-level system flag for this value.
func (e EmailFlag) ImapFlag() string {
	switch e {
	case EmailFlagFlagged:
		return "\\Flagged"
	default:
		return "\\Seen"
	}
}

func DecodeEmailFlag(s string) (EmailFlag, bool) {
	switch s {
	case string(EmailFlagRead):
		return EmailFlagRead, true
	case string(EmailFlagFlagged):
		return EmailFlagFlagged, true
	}
	return "", false
}
