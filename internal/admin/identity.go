package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	commonhttp "transbot-ops/internal/common/http"
)

// JWTIdentityProvider accepts HS256 tokens signed with a shared secret. The
// sub claim is the user id and exp is mandatory.
type JWTIdentityProvider struct {
	secret []byte
	now    func() time.Time
}

func NewJWTIdentityProvider(secret string) (*JWTIdentityProvider, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}
	return &JWTIdentityProvider{secret: []byte(secret), now: time.Now}, nil
}

func (p *JWTIdentityProvider) Identify(_ context.Context, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// IssueToken mints a token Identify accepts. Operators use it through the
// CLI; tests use it directly.
func (p *JWTIdentityProvider) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(p.secret)
}

// RemoteIdentityProvider asks an external identity service who owns a
// token: GET <url> with the bearer token, expecting {"id": "..."}.
type RemoteIdentityProvider struct {
	url    string
	client *http.Client
}

func NewRemoteIdentityProvider(url string, timeout time.Duration) *RemoteIdentityProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteIdentityProvider{
		url:    url,
		client: commonhttp.NewHTTPClient(commonhttp.WithTimeout(timeout)),
	}
}

func (p *RemoteIdentityProvider) Identify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("identity service returned %d", resp.StatusCode)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return "", fmt.Errorf("invalid identity response: %w", err)
	}
	if user.ID == "" {
		return "", errors.New("identity response has no id")
	}
	return user.ID, nil
}
