// Package auth adapts the identity collaborator to inbound connections.
// The chat core never issues credentials, it only checks them.
package auth

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Chat/internal/domain"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves the user behind an inbound request.
type Authenticator interface {
	Authenticate(c *gin.Context) (*domain.User, error)
}

// Verifier checks a bare credential.
type Verifier interface {
	VerifyIdentity(credential string) (*domain.User, error)
}

// Chain tries each authenticator in order; the first success wins.
type Chain []Authenticator

func (ch Chain) Authenticate(c *gin.Context) (*domain.User, error) {
	var errs []error
	for _, a := range ch {
		u, err := a.Authenticate(c)
		if err == nil {
			return u, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no authenticator configured: %w", ErrUnauthenticated)
	}
	return nil, errors.Join(errs...)
}
