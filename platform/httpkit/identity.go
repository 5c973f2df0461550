package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the caller resolved from the access token by AuthRequired.
type Identity interface {
	UserID() uuid.UUID
	// HasRole reports whether the token carried role.
	HasRole(role string) bool
	IsAuthenticated() bool
}

type tokenIdentity struct {
	userID uuid.UUID
	roles  []string
}

func (i tokenIdentity) UserID() uuid.UUID { return i.userID }

func (i tokenIdentity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i tokenIdentity) IsAuthenticated() bool { return i.userID != uuid.Nil }

// GetIdentity reads the caller from the context keys set by AuthRequired.
// A request without a user id yields an unauthenticated identity.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return tokenIdentity{}
	}
	uid, ok := raw.(uuid.UUID)
	if !ok {
		return tokenIdentity{}
	}

	var roles []string
	if v, ok := c.Get(ContextRolesKey); ok {
		roles, _ = v.([]string)
	}
	return tokenIdentity{userID: uid, roles: roles}
}

// MustGetIdentity aborts with 401 and returns nil when the caller is anonymous.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
