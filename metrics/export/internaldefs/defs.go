package internaldefs

import (
	goIDP "github.com/MrEthical07/goIDP"
)

// CounterDef binds an engine counter id to its exported name and help text.
type CounterDef struct {
	ID   goIDP.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram id to its exported name and help text.
type HistogramDef struct {
	ID   goIDP.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goIDP.MetricPreEntrySuccess, Name: "goidp_preentry_success_total", Help: "Accepted pre-entry registrations."},
	{ID: goIDP.MetricPreEntryDuplicateMail, Name: "goidp_preentry_duplicate_mail_total", Help: "Pre-entry attempts rejected for a mail address already in use."},
	{ID: goIDP.MetricPreEntryRateLimited, Name: "goidp_preentry_rate_limited_total", Help: "Rate-limited pre-entry attempts."},
	{ID: goIDP.MetricEntrySuccess, Name: "goidp_entry_success_total", Help: "Completed account registrations."},
	{ID: goIDP.MetricEntryFailure, Name: "goidp_entry_failure_total", Help: "Failed account registrations."},
	{ID: goIDP.MetricMailChangeRequested, Name: "goidp_mail_change_requested_total", Help: "Mail address change confirmations opened."},
	{ID: goIDP.MetricMailChangeConfirmed, Name: "goidp_mail_change_confirmed_total", Help: "Mail address changes committed."},
	{ID: goIDP.MetricSignInSuccess, Name: "goidp_signin_success_total", Help: "Successful credential sign-ins."},
	{ID: goIDP.MetricSignInFailure, Name: "goidp_signin_failure_total", Help: "Failed credential sign-ins."},
	{ID: goIDP.MetricTokenIssued, Name: "goidp_token_issued_total", Help: "Issued token pairs."},
	{ID: goIDP.MetricTokenRefreshSuccess, Name: "goidp_token_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goIDP.MetricTokenRefreshFailure, Name: "goidp_token_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: goIDP.MetricTokenRevoked, Name: "goidp_token_revoked_total", Help: "Single-pair revocations."},
	{ID: goIDP.MetricTokenRevokedAll, Name: "goidp_token_revoked_all_total", Help: "Subject-wide revocations."},
	{ID: goIDP.MetricCheckSuccess, Name: "goidp_check_success_total", Help: "Bearer checks that passed."},
	{ID: goIDP.MetricCheckFailure, Name: "goidp_check_failure_total", Help: "Bearer checks that failed."},
	{ID: goIDP.MetricAppAuthSuccess, Name: "goidp_appauth_success_total", Help: "Accepted authorization requests."},
	{ID: goIDP.MetricAppAuthRefused, Name: "goidp_appauth_refused_total", Help: "Refused authorization requests."},
	{ID: goIDP.MetricCodeIssued, Name: "goidp_code_issued_total", Help: "Issued authorization codes."},
	{ID: goIDP.MetricCodeExchangeSuccess, Name: "goidp_code_exchange_success_total", Help: "Successful authorization code exchanges."},
	{ID: goIDP.MetricCodeExchangeFailure, Name: "goidp_code_exchange_failure_total", Help: "Failed authorization code exchanges."},
	{ID: goIDP.MetricVirtualIDCreated, Name: "goidp_virtual_id_created_total", Help: "Minted pairwise virtual identifiers."},
	{ID: goIDP.MetricAccountUpdated, Name: "goidp_account_updated_total", Help: "Self-service profile updates."},
	{ID: goIDP.MetricAccountDeleted, Name: "goidp_account_deleted_total", Help: "Completed account deletions."},
	{ID: goIDP.MetricAccountDeletionPartial, Name: "goidp_account_deletion_partial_total", Help: "Account deletions that completed with failed sub-steps."},
}

var HistogramDefs = []HistogramDef{
	{ID: goIDP.MetricCheckLatency, Name: "goidp_check_latency_seconds", Help: "Bearer check latency histogram."},
}

var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed bucket
// count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form the
// exposition formats require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
