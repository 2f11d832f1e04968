package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/dkeye/Chat/internal/domain"
)

func TestSessionAuthenticator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("ChatSessions", cookie.NewStore([]byte("secret"))))
	r.GET("/login", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(SessionUserKey, "u7")
		s.Set(SessionNameKey, "Grace")
		_ = s.Save()
		c.Status(http.StatusNoContent)
	})
	r.GET("/me", func(c *gin.Context) {
		u, err := SessionAuthenticator{}.Authenticate(c)
		if err != nil {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, u)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /me = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("login set no cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/me with session = %d", rec.Code)
	}
}

func TestSessionAuthenticator_WithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := (SessionAuthenticator{}).Authenticate(c); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

type staticAuth struct {
	user *domain.User
	err  error
}

func (s staticAuth) Authenticate(*gin.Context) (*domain.User, error) { return s.user, s.err }

func TestChain(t *testing.T) {
	deny := staticAuth{err: ErrUnauthenticated}
	allow := staticAuth{user: &domain.User{ID: "u1"}}

	u, err := Chain{deny, allow}.Authenticate(nil)
	if err != nil || u.ID != "u1" {
		t.Fatalf("chain = %v, %v", u, err)
	}
	if _, err := (Chain{deny, deny}).Authenticate(nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("all-deny chain: err = %v", err)
	}
	if _, err := (Chain{}).Authenticate(nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("empty chain: err = %v", err)
	}
}
