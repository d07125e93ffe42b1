package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

type contextKey string

const adminClaimsKey contextKey = "adminClaims"

// AdminPasswordHeader carries the shared admin secret.
const AdminPasswordHeader = "X-Admin-Password"

const adminSubject = "admin"

// AdminConfig configures the admin gate and its login endpoint.
type AdminConfig struct {
	Password string
	// Secret signs login tokens. The password is used when empty.
	Secret   string
	TokenTTL time.Duration
	Now      func() time.Time
}

func (c AdminConfig) signingKey() []byte {
	if c.Secret != "" {
		return []byte(c.Secret)
	}
	return []byte(c.Password)
}

func (c AdminConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c AdminConfig) passwordMatches(candidate string) bool {
	if c.Password == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(c.Password)) == 1
}

// AdminGate admits requests carrying the shared password header or a bearer
// token issued by AdminLogin.
func AdminGate(cfg AdminConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Password == "" {
				http.Error(w, "admin auth disabled", http.StatusUnauthorized)
				return
			}
			if cfg.passwordMatches(r.Header.Get(AdminPasswordHeader)) {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing admin credentials", http.StatusUnauthorized)
				return
			}
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return cfg.signingKey(), nil
			}, jwt.WithTimeFunc(cfg.now), jwt.WithExpirationRequired(), jwt.WithSubject(adminSubject))
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), adminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminClaimsFromContext returns admin JWT claims if present.
func AdminClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}

// LoginRequest is the body of POST /admin/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries a signed admin token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminLogin exchanges the shared password for a signed token.
func AdminLogin(cfg AdminConfig, logger *logging.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if !cfg.passwordMatches(req.Password) {
			logger.Warn("admin login rejected", "remote_ip", r.RemoteAddr)
			http.Error(w, "invalid password", http.StatusUnauthorized)
			return
		}

		now := cfg.now()
		expires := now.Add(ttl)
		claims := jwt.RegisteredClaims{
			Subject:   adminSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.signingKey())
		if err != nil {
			logger.Error("failed to sign admin token", "error", err)
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(LoginResponse{Token: signed, ExpiresAt: expires.UTC()}); err != nil {
			logger.Error("failed to encode login response", "error", err)
		}
	}
}
