package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"engdocs-qa-platform/utils"
)

// Claims carried by access tokens. Group membership travels in the
// token so the query path never consults an identity service.
type Claims struct {
	UserID   string  `json:"user_id"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	GroupIDs []int64 `json:"group_ids"`
	// Profile selects the prompt template family for the user's group.
	Profile string `json:"profile"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// RequireAuth validates the bearer token and stores the claims in the
// request context.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

// RequireAdmin gates the admin surface.
func (a *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || claims.Role != "admin" {
			utils.RespondWithForbidden(c, "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetClaims retrieves the validated claims from context.
func GetClaims(c *gin.Context) *Claims {
	if v, exists := c.Get("claims"); exists {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// MemberOfGroup reports whether the caller belongs to groupID.
func (cl *Claims) MemberOfGroup(groupID int64) bool {
	for _, id := range cl.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}
