package goIDP

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE challenge methods accepted by [Engine.Auth].
const (
	CodeChallengeS256  = "S256"
	CodeChallengePlain = "plain"
)

// verifyCodeChallenge checks a verifier against a stored challenge. Unknown
// methods never match.
func verifyCodeChallenge(challenge, method, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	switch method {
	case CodeChallengeS256:
		sum := sha256.Sum256([]byte(verifier))
		derived := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
	case CodeChallengePlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}

func validCodeChallengeMethod(method string) bool {
	return method == CodeChallengeS256 || method == CodeChallengePlain
}
