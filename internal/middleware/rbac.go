package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
)

// ContextKeyDomain is the Gin context key for the domain resolved by RequireDomainAccess.
const ContextKeyDomain = "domain"

// RequireDomainAccess resolves the domain path parameter and checks that the
// admin in the JWT may manage it.
func RequireDomainAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		d, err := model.ParseDomain(c.Param(param))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidDomain)
			return
		}

		if !claims.Principal().CanManage(d) {
			response.AbortFail(c, http.StatusForbidden, response.ErrDomainForbidden)
			return
		}

		c.Set(ContextKeyDomain, d)
		c.Next()
	}
}

// GetDomain retrieves the domain set by RequireDomainAccess.
func GetDomain(c *gin.Context) model.Domain {
	d, _ := c.Get(ContextKeyDomain)
	domain, _ := d.(model.Domain)
	return domain
}
