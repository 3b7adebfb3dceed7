package auth

import (
	"errors"

	"github.com/wb-go/wbf/ginext"

	"iscevents/internal/dto"
	"iscevents/internal/model"
)

const principalKey = "isce_auth"

// Required authenticates the request against the identity service and aborts
// with a 401 envelope before the handler runs if that fails. On success the
// principal is attached to the request context.
func Required(client *Client) func(c *ginext.Context) {
	return func(c *ginext.Context) {
		principal, err := client.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if !errors.Is(err, ErrUnauthorized) {
				client.log.Error().Err(err).Msg("identity service call failed")
			}
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}
		SetPrincipal(c, principal)
		c.Next()
	}
}

// SetPrincipal attaches the principal to the request context.
func SetPrincipal(c *ginext.Context, principal *model.Principal) {
	c.Set(principalKey, principal)
}

// PrincipalFrom returns the principal attached by Required.
func PrincipalFrom(c *ginext.Context) (*model.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	principal, ok := v.(*model.Principal)
	return principal, ok
}
