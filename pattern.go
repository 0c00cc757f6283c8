package goIDP

import "regexp"

// Identifier shapes are fixed by the wire format: system identifiers are 13 decimal
// digits, virtual and application identifiers are a prefix plus a dashless UUIDv4.
var (
	// SystemIDPattern matches a 13-digit system identifier.
	SystemIDPattern = regexp.MustCompile(`^\d{13}$`)
	// VirtualIDPattern matches a pairwise virtual identifier.
	VirtualIDPattern = regexp.MustCompile(`^vid-[0-9a-f]{12}4[0-9a-f]{3}[89ab][0-9a-f]{15}$`)
	// AppIDPattern matches a relying-application identifier.
	AppIDPattern = regexp.MustCompile(`^app-[0-9a-f]{12}4[0-9a-f]{3}[89ab][0-9a-f]{15}$`)
	// MailAddressPattern matches the accepted mail-address syntax.
	MailAddressPattern = regexp.MustCompile(`^[a-zA-Z0-9_+-]+(\.[a-zA-Z0-9_+-]+)*@[a-zA-Z0-9]+(\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,}$`)
	// UserIDPattern matches a user-chosen handle: 5-20 chars, leading alphanumeric.
	UserIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_]{4,19}$`)
	// CorpNumberPattern matches a 13-digit corporate number or a 12-digit corporate
	// registry number.
	CorpNumberPattern = regexp.MustCompile(`^([1-9][0-9]{12}|[0-9]{12})$`)
)

const maxMailAddressLength = 256

// ValidMailAddress reports whether addr is syntactically acceptable.
func ValidMailAddress(addr string) bool {
	return len(addr) <= maxMailAddressLength && MailAddressPattern.MatchString(addr)
}

// ValidUserID reports whether handle is a syntactically acceptable user id.
func ValidUserID(handle string) bool {
	return UserIDPattern.MatchString(handle)
}
