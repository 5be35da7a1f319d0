package auth

import (
	"context"
	"time"
)

// TokenBlacklist stores revoked session ids. A session lands here when the
// user logs out or an admin bans them; entries expire with the token itself.
type TokenBlacklist interface {
	// Add revokes jti until the token's original expiry time.
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	// IsBlacklisted reports whether jti has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
