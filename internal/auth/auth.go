package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	// ErrMissingToken means the request carried no credentials.
	ErrMissingToken = errors.New("no authentication token")
	// ErrInvalidToken covers bad signatures, expired tokens and missing owner claims.
	ErrInvalidToken = errors.New("token is invalid or expired")
)

// Authenticator resolves the owner id of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

type claims struct {
	jwt.Claims
	UserID string `json:"userId,omitempty"`
}

const (
	leeway         = 30 * time.Second
	minSecretBytes = 32
)

// JWTAuthenticator verifies HS256 bearer tokens and reads the owner from the userId
// claim, falling back to sub.
type JWTAuthenticator struct {
	secret []byte
	now    func() time.Time
}

func NewJWTAuthenticator(secret string) (*JWTAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required for jwt auth")
	}
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes for HS256", minSecretBytes)
	}
	return &JWTAuthenticator{secret: []byte(secret), now: time.Now}, nil
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (string, error) {
	raw := bearerToken(r)
	if raw == "" {
		return "", ErrMissingToken
	}
	return a.Verify(raw)
}

// Verify checks the token and returns its owner id.
func (a *JWTAuthenticator) Verify(raw string) (string, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var c claims
	if err := tok.Claims(a.secret, &c); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := c.ValidateWithLeeway(jwt.Expected{Time: a.now()}, leeway); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	owner := strings.TrimSpace(c.UserID)
	if owner == "" {
		owner = strings.TrimSpace(c.Subject)
	}
	if owner == "" {
		return "", fmt.Errorf("%w: no owner claim", ErrInvalidToken)
	}
	return owner, nil
}

// Issue mints an HS256 token for ownerID valid for ttl. Used for local development.
func Issue(secret, ownerID string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("signing secret is required")
	}
	if strings.TrimSpace(ownerID) == "" {
		return "", errors.New("owner id is required")
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}
	c := claims{
		Claims: jwt.Claims{
			Subject:  ownerID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID: ownerID,
	}
	if ttl > 0 {
		c.Expiry = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.Signed(signer).Claims(c).Serialize()
}

// HeaderAuthenticator trusts X-User-ID. Local development only.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if owner == "" {
		return "", ErrMissingToken
	}
	return owner, nil
}

// New builds the authenticator for mode "jwt" or "header".
func New(mode, secret string) (Authenticator, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "jwt":
		return NewJWTAuthenticator(secret)
	case "header":
		return HeaderAuthenticator{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", mode)
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

type ownerKey struct{}

// WithOwner stores the authenticated owner id on ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFrom returns the owner id stored by WithOwner.
func OwnerFrom(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}
