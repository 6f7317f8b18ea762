package enum

type EmailSecurity string

const (
	EmailSecurityNone EmailSecurity = "none"
	EmailSecurityTLS  EmailSecurity = "tls"
)

func (e EmailSecurity) String() string {
	return string(e)
}
