// Package goIDP provides the account and identity core of an OpenID-Connect-style
// identity provider: two-phase account registration with mail-ownership proof, opaque
// access/refresh token issuance and rotation, signed OpenID ID tokens, pairwise
// pseudonymous (virtual) identifiers that hide real account identifiers from relying
// applications, and a PKCE authorization-code sub-protocol.
//
// The package is designed for concurrent server workloads: Engine methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goIDP is the public surface. It exposes [Engine], [Builder], [Config], the collaborator
// contracts ([AccountProvider], [VirtualIDProvider], [ApplicationProvider],
// [CorpRegistryClient], [ProfileAggregator]), and value types. All internal coordination
// (TTL record encoding, atomic single-use consumption, identifier minting, audit
// dispatch) lives under internal/ and is never exported.
//
// Persistence is deliberately out of scope: account, application, and virtual-identifier
// records live behind the provider interfaces, while every short-lived artifact
// (pre-entry claim, authorization grant, authorization code, token pair) lives in Redis
// with a TTL and is single-use by construction.
package goIDP
