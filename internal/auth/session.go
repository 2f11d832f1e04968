package auth

import (
	"fmt"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/dkeye/Chat/internal/domain"
)

const (
	SessionUserKey = "user_id"
	SessionNameKey = "full_name"
)

// SessionAuthenticator trusts the cookie session written by the surrounding
// application. The sessions middleware must run before it.
type SessionAuthenticator struct{}

func (SessionAuthenticator) Authenticate(c *gin.Context) (*domain.User, error) {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil, fmt.Errorf("no session store: %w", ErrUnauthenticated)
	}
	s := sessions.Default(c)
	id, _ := s.Get(SessionUserKey).(string)
	if id == "" {
		return nil, fmt.Errorf("no session user: %w", ErrUnauthenticated)
	}
	name, _ := s.Get(SessionNameKey).(string)
	u, err := domain.NewUser(id, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return u, nil
}
