package goIDP

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goIDP/internal/audit"
)

// Well-known scope names. The full scope table is configurable; these three are
// referenced by the engine itself.
const (
	// ScopeUserRead grants read access to the caller's own account record.
	ScopeUserRead = "user.read"
	// ScopeUserWrite grants profile update and account deletion.
	ScopeUserWrite = "user.write"
	// ScopeOpenID requests an ID token alongside the opaque pair.
	ScopeOpenID = "openid"
)

// Account type codes. Even non-zero codes are self-registered personal records and
// are the only records eligible for age-rate computation and self-service updates.
const (
	// AccountTypeSupervisor is the platform's own supervisory account.
	AccountTypeSupervisor = 0
	// AccountTypeCorporate is a registry-resolved corporate account.
	AccountTypeCorporate = 3
	// AccountTypePersonal is a self-registered personal account.
	AccountTypePersonal = 4
)

// AccountRecord is the full account projection exchanged with [AccountProvider].
// Password carries the opaque credential; hashing is the provider's concern.
type AccountRecord struct {
	ID          string
	UserID      string
	Name        string
	MailAddress string
	Password    string
	AccountType int
}

// PublicProfile is the projection safe to show to unauthenticated callers.
type PublicProfile struct {
	UserID      string
	Name        string
	AccountType int
}

// AccountInformation is the caller's own record as returned by
// [Engine.GetByAccessToken]. It never carries the credential.
type AccountInformation struct {
	ID          string
	UserID      string
	Name        string
	MailAddress string
	AccountType int
}

// AvailabilityQuery asks an [AccountProvider] whether an identifier is still free.
// Exactly one field must be set.
type AvailabilityQuery struct {
	MailAddress string
	UserID      string
	CorpNumber  string
}

// AccountUpdate is a partial profile patch. Empty fields are left unchanged.
// A non-empty MailAddress is never applied directly; it opens a pre-entry
// confirmation loop instead (see [Engine.Update]).
type AccountUpdate struct {
	UserID      string
	Name        string
	Password    string
	MailAddress string
}

// AccountProvider is the persistent account store contract. Implementations own
// credential hashing and uniqueness enforcement.
type AccountProvider interface {
	Available(ctx context.Context, q AvailabilityQuery) (bool, error)
	CreateAccount(ctx context.Context, record AccountRecord) error
	// GetAccount returns the public projection for a handle, or nil when absent.
	GetAccount(ctx context.Context, userID string) (*PublicProfile, error)
	// SGetAccount returns the full projection for a system id, or nil when absent.
	SGetAccount(ctx context.Context, systemID string) (*AccountRecord, error)
	UpdateAccount(ctx context.Context, systemID string, patch AccountUpdate) error
	// DeleteAccount reports whether a record was removed.
	DeleteAccount(ctx context.Context, systemID string) (bool, error)
	// SignIn resolves an identifier (system id, handle, or mail address) and
	// verifies the credential. It returns "" on any mismatch; implementations must
	// not reveal whether the identifier existed.
	SignIn(ctx context.Context, identifier, password string) (string, error)
}

// VirtualIDBinding ties a virtual identifier to its account and, for third-party
// tokens, the relying application. AppID is empty for first-party bearer subjects.
type VirtualIDBinding struct {
	VirtualID string
	SystemID  string
	AppID     string
}

// VirtualIDProvider is the persistent virtual-identifier directory contract.
type VirtualIDProvider interface {
	// GetVirtualID returns the existing binding's virtual id, or "" when the pair
	// has none yet.
	GetVirtualID(ctx context.Context, systemID, appID string) (string, error)
	CreateVirtualID(ctx context.Context, binding VirtualIDBinding) error
	// Resolve returns the binding for a virtual id, or nil when unknown.
	Resolve(ctx context.Context, virtualID string) (*VirtualIDBinding, error)
	VirtualIDsOfAccount(ctx context.Context, systemID string) ([]string, error)
	VirtualIDsOfApp(ctx context.Context, appID string) ([]string, error)
	// DeleteAccount removes every binding owned by the account.
	DeleteAccount(ctx context.Context, systemID string) error
	// DeleteApp removes every binding scoped to the application.
	DeleteApp(ctx context.Context, appID string) error
}

// ApplicationInformation is a registered relying application.
type ApplicationInformation struct {
	AppID         string
	DeveloperID   string
	Name          string
	Description   string
	RedirectURIs  []string
	PrivacyPolicy string
	Public        bool
}

// DeveloperInfo identifies the developer account behind an authenticated client.
type DeveloperInfo struct {
	SystemID    string
	AccountType int
}

// ApplicationProvider is the persistent relying-application store contract.
type ApplicationProvider interface {
	// AuthApp authenticates a client. Public clients pass the literal secret
	// "public". It returns nil on unknown client, secret mismatch, or an
	// unregistered redirect URI; the causes are indistinguishable.
	AuthApp(ctx context.Context, clientID, clientSecret, redirectURI string) (*DeveloperInfo, error)
	GetApp(ctx context.Context, appID string) (*ApplicationInformation, error)
	GetApps(ctx context.Context, developerID string) ([]ApplicationInformation, error)
	DeleteApp(ctx context.Context, appID string) (bool, error)
	DeleteApps(ctx context.Context, developerID string) error
}

// CorpProfile is a legal entity resolved from the corporate registry.
type CorpProfile struct {
	ID          string
	Name        string
	AccountType int
}

// CorpRegistryClient resolves a corporate number to a legal-entity profile.
// Retry and backoff policy belong to the implementation, not the engine.
type CorpRegistryClient interface {
	Profile(ctx context.Context, corpNumber string) (*CorpProfile, error)
}

// ProfileAggregator supplies the account holder's age for age-rate computation.
type ProfileAggregator interface {
	Age(ctx context.Context, systemID string) (int, error)
}

// PreEntryResult is the confirmation handle returned by [Engine.PreEntry] and by
// mail-address changes through [Engine.Update].
type PreEntryResult struct {
	ID        string
	ExpiresAt time.Time
}

// EntryProfile is the second-phase registration payload. The variant is
// discriminated by CorpNumber: empty means a personal profile (Name required),
// non-empty means a corporate profile (Name resolved from the registry).
type EntryProfile struct {
	UserID     string
	Name       string
	CorpNumber string
	Password   string
}

// Corporate reports which variant the profile carries.
func (p EntryProfile) Corporate() bool {
	return p.CorpNumber != ""
}

// IssueTokenRequest describes one token issuance. When AppID is set, SubjectID
// must be a system identifier and the pair is bound to the pairwise virtual
// identifier for (SubjectID, AppID); otherwise SubjectID must already be a
// virtual identifier. Zero expiry overrides fall back to [TokenConfig] defaults.
type IssueTokenRequest struct {
	SubjectID         string
	AppID             string
	Scopes            []string
	Nonce             string
	AccessExpiresMin  int
	RefreshExpiresMin int
	IDTokenExpiresMin int
}

// TokenPair is one issuance: linked opaque access/refresh tokens and, when the
// openid scope was granted, a signed ID token.
type TokenPair struct {
	TokenType        string
	AccessToken      string
	RefreshToken     string
	IDToken          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	IDTokenExpiresAt time.Time
}

// UpdateResult reports the outcome of [Engine.Update]. MailConfirm is non-nil
// when the patch carried a mail address; the change is pending until
// [Engine.UpdateMailAddress] is called with the confirmation id.
type UpdateResult struct {
	MailConfirm *PreEntryResult
}

// AuthRequest is a relying application's PKCE authorization request.
// ClientSecret is empty for public clients.
type AuthRequest struct {
	ClientID            string
	ClientSecret        string
	Scopes              []string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizedApp is the consent-screen view of a pending authorization grant.
type AuthorizedApp struct {
	App    ApplicationInformation
	Scopes []string
}

// TokenIssueInformation is the verified result of a code exchange: everything
// the caller needs to mint tokens via [Engine.IssueToken].
type TokenIssueInformation struct {
	AppID    string
	SystemID string
	Scopes   []string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
