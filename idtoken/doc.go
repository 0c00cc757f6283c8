// Package idtoken mints and verifies signed identity assertions for relying
// applications. Subjects are always pairwise virtual identifiers.
package idtoken
