// Package stores implements the Redis-backed TTL stores behind the engine:
// pre-entry claims, authorization grants and codes, and opaque token pairs.
//
// # Design
//
// Every record is encoded as a compact versioned binary blob and written with a
// TTL. Single-use records are consumed through a Lua script that reads and
// deletes in one step, so a concurrent double-read of the same one-time key
// resolves to exactly one winner. Expiry is enforced twice: by Redis TTL and by
// an expires-at field inside the record, with lazy deletion on read.
//
// # What this package must NOT do
//
//   - Apply business rules (scope checks, PKCE verification, kind dispatch);
//     that is engine territory.
//   - Import the root package or any sibling above internal/.
package stores
