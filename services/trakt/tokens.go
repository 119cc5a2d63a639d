package trakt

import (
	"context"
	"errors"
	"log"
	"time"

	"listforge/config"
)

// EnsureValidToken returns a token bundle that is safe to use right now.
//
// A bundle still inside its validity window comes back untouched. An expired
// one is refreshed; on success the returned bundle carries the new pair with a
// later expiry. When Trakt rejects the refresh token outright, the returned
// bundle has all token fields cleared and the error is ErrAuthRejected, so the
// caller persists the cleared state instead of retrying a dead token. On
// transient failures the input comes back unchanged with a nil error; the
// stale access token may still be honored and the next call tries again.
func (c *Client) EnsureValidToken(ctx context.Context, t config.TraktTokens) (config.TraktTokens, error) {
	if t.AccessToken == "" || t.RefreshToken == "" {
		return t, nil
	}
	if t.ClientID != "" && t.ClientID != c.clientID {
		c.UpdateCredentials(t.ClientID, t.ClientSecret)
	}
	if time.Now().Unix() < t.ExpiresAt {
		return t, nil
	}

	token, err := c.RefreshAccessToken(ctx, t.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrAuthRejected) {
			log.Printf("[trakt] refresh token rejected, clearing stored tokens")
			cleared := t
			cleared.AccessToken = ""
			cleared.RefreshToken = ""
			cleared.ExpiresAt = 0
			return cleared, ErrAuthRejected
		}
		log.Printf("[trakt] token refresh failed, keeping current tokens: %v", err)
		return t, nil
	}

	updated := t
	updated.AccessToken = token.AccessToken
	updated.RefreshToken = token.RefreshToken
	updated.ExpiresAt = expiryOf(token)
	log.Printf("[trakt] access token refreshed, valid until %s",
		time.Unix(updated.ExpiresAt, 0).Format(time.RFC3339))
	return updated, nil
}

func expiryOf(token *TokenResponse) int64 {
	created := token.CreatedAt
	if created == 0 {
		created = time.Now().Unix()
	}
	return created + token.ExpiresIn
}
