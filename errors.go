package goIDP

import "errors"

var (
	// ErrEngineNotReady is returned when a method is invoked on an Engine whose
	// required collaborators were not supplied to the Builder.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrInvalidSystemID is raised when a subject that must be a system identifier
	// does not match the 13-digit shape.
	ErrInvalidSystemID = errors.New("invalid system id")
	// ErrInvalidVirtualID is raised when a subject that must be a virtual identifier
	// does not match the vid- shape.
	ErrInvalidVirtualID = errors.New("invalid virtual id")
	// ErrInvalidAppID is raised when an application identifier does not match the
	// app- shape.
	ErrInvalidAppID = errors.New("invalid app id")
	// ErrInvalidMailAddress is raised when a mail address fails syntactic validation.
	ErrInvalidMailAddress = errors.New("invalid mail address")
	// ErrInvalidUserID is raised when a user id (handle) fails syntactic validation.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrInvalidCorpNumber is raised when a corporate number fails syntactic validation.
	ErrInvalidCorpNumber = errors.New("invalid corp number")
	// ErrInvalidProfile is raised when an entry profile is neither a valid personal
	// nor a valid corporate shape.
	ErrInvalidProfile = errors.New("invalid entry profile")

	// ErrMailAddressInUse rejects a pre-entry or mail change for an address that
	// already belongs to an account.
	ErrMailAddressInUse = errors.New("mail address already in use")
	// ErrUserIDInUse rejects an entry or update whose handle is already taken.
	ErrUserIDInUse = errors.New("user id already in use")
	// ErrCorpAlreadyRegistered rejects a corporate entry for a corporation that
	// already holds an account.
	ErrCorpAlreadyRegistered = errors.New("corporate account already registered")
	// ErrUpdateNotAllowed rejects self-service profile updates for supervisor and
	// corporate account records.
	ErrUpdateNotAllowed = errors.New("account type may not self-update")

	// ErrNotFound is the uniform missing-or-expired outcome for pre-entry claims,
	// authorization grants, and authorization codes. Callers cannot distinguish a
	// record that never existed from one that expired or was already consumed.
	ErrNotFound = errors.New("not found")
	// ErrSubjectNotFound is raised when a well-formed virtual identifier has no
	// binding in the directory.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrTokenNotFound is returned by Revoke when neither half of a pair exists.
	ErrTokenNotFound = errors.New("token not found")

	// ErrUnauthorized covers every bearer/refresh credential failure: unknown,
	// expired, revoked, scope-insufficient, or a sign-in mismatch. The causes are
	// intentionally indistinguishable.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAuthorizationRefused is the uniform PKCE authorization rejection: unknown
	// client, secret mismatch, unregistered redirect URI, or a scope outside the
	// developer's ceiling.
	ErrAuthorizationRefused = errors.New("authorization refused")

	// ErrPartialDeletion signals that a cascading account deletion completed with
	// at least one failed sub-step. Every failed resource was audited individually.
	ErrPartialDeletion = errors.New("account deletion completed with failures")

	// ErrPreEntryRateLimited is returned when the optional pre-entry throttle
	// rejects a request.
	ErrPreEntryRateLimited = errors.New("pre-entry rate limited")

	// ErrCacheUnavailable wraps Redis transport failures from the TTL stores.
	ErrCacheUnavailable = errors.New("cache backend unavailable")
)
