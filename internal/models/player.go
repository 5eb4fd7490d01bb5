package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// Player identifies who is playing. Credentials are forwarded to the reward
// service untouched; the arcade never validates them itself.
type Player struct {
	ID          string `json:"id"`
	BearerToken string `json:"-"` // Never serialize
	Cookie      string `json:"-"`
	// SessionToken is the token handed out when a session was created. It is
	// the only way to act on a session started anonymously.
	SessionToken string `json:"-"`
}

// Anonymous returns true if no credentials were presented
func (p *Player) Anonymous() bool {
	return p == nil || (p.BearerToken == "" && p.Cookie == "")
}

// PlayerID derives a stable, non-reversible id from the presented credentials.
// Anonymous players share the id "anonymous".
func PlayerID(bearerToken, cookie string) string {
	secret := bearerToken
	if secret == "" {
		secret = cookie
	}
	if secret == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}

// MaskedToken returns first 8 characters of the bearer token for logging
func (p *Player) MaskedToken() string {
	if len(p.BearerToken) < 8 {
		return "***"
	}
	return p.BearerToken[:8] + "..."
}
