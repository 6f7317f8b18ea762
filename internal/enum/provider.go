package enum

type EmailProvider string

const (
	EmailProviderGeneric  EmailProvider = "generic"
	EmailProviderGmail    EmailProvider = "gmail"
	EmailProviderOutlook  EmailProvider = "outlook"
	EmailProviderYahoo    EmailProvider = "yahoo"
	EmailProviderICloud   EmailProvider = "icloud"
	EmailProviderGMX      EmailProvider = "gmx"
	EmailProviderWebDe    EmailProvider = "webde"
	EmailProviderFastmail EmailProvider = "fastmail"
)

func (e EmailProvider) String() string {
	return string(e)
}

func DecodeEmailProvider(s string) EmailProvider {
	switch s {
	case "gmail", "outlook", "yahoo", "icloud", "gmx", "webde", "fastmail":
		return EmailProvider(s)
	default:
		return EmailProviderGeneric
	}
}
