package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func validClaims(uid string) Claims {
	return Claims{
		UserID:   uid,
		FullName: "Ada Lovelace",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestJWTVerifier_VerifyIdentity(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	expired := validClaims("u1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name    string
		token   string
		wantUID string
	}{
		{name: "valid", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("u1")), wantUID: "u1"},
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("u1"))},
		{name: "wrong alg", token: sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("u1"))},
		{name: "expired", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{name: "missing user id", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(""))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := v.VerifyIdentity(tt.token)
			if tt.wantUID == "" {
				if !errors.Is(err, ErrUnauthenticated) {
					t.Fatalf("err = %v, want ErrUnauthenticated", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyIdentity: %v", err)
			}
			if string(u.ID) != tt.wantUID || u.FullName != "Ada Lovelace" {
				t.Fatalf("user = %+v", u)
			}
		})
	}
}

func TestJWTVerifier_Issuer(t *testing.T) {
	v := NewJWTVerifier(testSecret, WithIssuer("chat-auth"))
	c := validClaims("u1")
	c.Issuer = "someone-else"
	if _, err := v.VerifyIdentity(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("foreign issuer accepted: %v", err)
	}
	c.Issuer = "chat-auth"
	if _, err := v.VerifyIdentity(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)); err != nil {
		t.Fatalf("matching issuer rejected: %v", err)
	}
}

func TestJWTAuthenticator_TokenSources(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("u1"))
	a := JWTAuthenticator{Verifier: NewJWTVerifier(testSecret)}

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{name: "cookie", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tok}) }},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }},
		{name: "query", setup: func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", tok)
			r.URL.RawQuery = q.Encode()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/api/ws", nil)
			tt.setup(c.Request)
			u, err := a.Authenticate(c)
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if u.ID != "u1" {
				t.Fatalf("user = %+v", u)
			}
		})
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	if _, err := a.Authenticate(c); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("request without credentials: err = %v", err)
	}
}
