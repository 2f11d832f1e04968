package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/Chat/internal/domain"
)

const DefaultCookieName = "jwt"

// Claims is what the auth collaborator signs: userId plus an optional name.
type Claims struct {
	UserID   string `json:"userId"`
	FullName string `json:"fullName,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens signed with the shared secret.
type JWTVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

type JWTOption func(*JWTVerifier)

func WithIssuer(iss string) JWTOption {
	return func(v *JWTVerifier) { v.opts = append(v.opts, jwt.WithIssuer(iss)) }
}

func WithLeeway(d time.Duration) JWTOption {
	return func(v *JWTVerifier) { v.opts = append(v.opts, jwt.WithLeeway(d)) }
}

func WithTimeFunc(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) { v.opts = append(v.opts, jwt.WithTimeFunc(now)) }
}

func NewJWTVerifier(secret string, opts ...JWTOption) *JWTVerifier {
	v := &JWTVerifier{
		secret: []byte(secret),
		opts:   []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *JWTVerifier) VerifyIdentity(token string) (*domain.User, error) {
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", ErrUnauthenticated)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	u, err := domain.NewUser(claims.UserID, claims.FullName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return u, nil
}

// JWTAuthenticator looks for the token in the cookie, then a bearer header,
// then the token query parameter (browsers cannot set headers on websockets).
type JWTAuthenticator struct {
	Verifier   Verifier
	CookieName string
}

func (a JWTAuthenticator) Authenticate(c *gin.Context) (*domain.User, error) {
	return a.Verifier.VerifyIdentity(a.token(c))
}

func (a JWTAuthenticator) token(c *gin.Context) string {
	name := a.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	if tok, err := c.Cookie(name); err == nil && tok != "" {
		return tok
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}
