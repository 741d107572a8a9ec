package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/response"
)

// ContextSigningTokenKey is the gin context key storing the recipient token.
const ContextSigningTokenKey = "signingToken"

// Recipient tokens are 32 random bytes base64url encoded.
const minSigningTokenLength = 16

// SigningToken guards recipient routes: the token path parameter must be
// present and plausibly shaped. Resolution against the recipient table
// happens in the service layer.
func SigningToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		if len(token) < minSigningTokenLength {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or malformed signing token"))
			c.Abort()
			return
		}
		c.Set(ContextSigningTokenKey, token)
		c.Next()
	}
}
