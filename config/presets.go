package config

import "github.com/briefkasten-app/briefkasten/internal/enum"

// ImapPreset carries the known server settings for a mail provider, so
// account setup only needs an address and a password.
type ImapPreset struct {
	Server   string
	Port     int
	Security enum.EmailSecurity
}

var imapPresets = map[enum.EmailProvider]ImapPreset{
	enum.EmailProviderGmail:    {Server: "imap.gmail.com", Port: 993, Security: enum.EmailSecurityTLS},
	enum.EmailProviderOutlook:  {Server: "outlook.office365.com", Port: 993, Security: enum.EmailSecurityTLS},
	enum.EmailProviderYahoo:    {Server: "imap.mail.yahoo.com", Port: 993, Security: enum.EmailSecurityTLS},
	enum.EmailProviderICloud:   {Server: "imap.mail.me.com", Port: 993, Security: enum.EmailSecurityTLS},
	enum.EmailProviderGMX:      {Server: "imap.gmx.net", Port: 993, Security: enum.EmailSecurityTLS},
	enum.EmailProviderWebDe:    {Server: "imap.web.de", Port: 993, Security: enum.EmailSecurityTLS},
	enum.EmailProviderFastmail: {Server: "imap.fastmail.com", Port: 993, Security: enum.EmailSecurityTLS},
}

// PresetFor returns the server settings for a provider, when known.
func PresetFor(provider enum.EmailProvider) (ImapPreset, bool) {
	preset, ok := imapPresets[provider]
	return preset, ok
}
