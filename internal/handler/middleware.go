package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"event-checkin/internal/model"
	"event-checkin/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Claims is the subset of the hosted auth service's access token we rely on.
type Claims struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	UserMetadata struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// User resolves the caller. Roles the app does not know fall back to usher.
func (c *Claims) User() *model.AuthUser {
	name := c.UserMetadata.Name
	if name == "" {
		name = c.UserMetadata.FullName
	}
	role := model.Role(c.AppMetadata.Role)
	if role == "" {
		role = model.Role(c.Role)
	}
	switch role {
	case model.RoleSuperAdmin, model.RoleAdmin, model.RoleUsher:
	default:
		role = model.RoleUsher
	}
	return &model.AuthUser{ID: c.Subject, Email: c.Email, Name: name, Role: role}
}

type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// VerifyJWT rejects requests without a valid bearer token.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := a.Parse(raw)
		if err != nil {
			logger.WithComponent("handler").Debug("rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(userContextKey, claims.User())
		c.Next()
	}
}

func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	cfg.ExposeHeaders = []string{"Content-Disposition", "X-Bundle-Warning", "X-Request-ID"}
	cfg.MaxAge = 12 * time.Hour
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowOrigins = nil
	}
	return cors.New(cfg)
}
