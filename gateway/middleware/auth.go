package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"pointsvault/crypto"
	nativecommon "pointsvault/native/common"
	"pointsvault/observability/logging"
)

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Enabled    bool
	HMACSecret string
	Issuer     string
	Audience   string
	// RoleClaim names the claim carrying "admin", "partner" or "user".
	RoleClaim string
	ClockSkew time.Duration
}

type contextKey string

const contextKeyAuthority contextKey = "points.authority"

var (
	errMissingToken   = errors.New("missing bearer token")
	errInvalidSubject = errors.New("subject is not a valid address")
	errUnknownRole    = errors.New("unknown role")
)

// Authenticator verifies HMAC-signed JWTs and turns them into an Authority.
type Authenticator struct {
	cfg    AuthConfig
	logger *slog.Logger
	secret []byte
}

func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "role"
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, logger: logger, secret: []byte(strings.TrimSpace(cfg.HMACSecret))}
}

// Middleware attaches the caller's authority to the request context. Requests
// without a token pass through anonymously; handlers for mutating routes
// reject a missing authority. Invalid tokens are rejected here.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			next.ServeHTTP(w, r)
			return
		}
		tokenString := extractBearer(header)
		if tokenString == "" {
			writeAuthError(w, errMissingToken)
			return
		}
		auth, err := a.Authority(tokenString)
		if err != nil {
			a.logger.Warn("token rejected",
				slog.Any("error", err),
				slog.String("token", logging.MaskToken(tokenString)))
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthority(r.Context(), auth)))
	})
}

// Authority verifies tokenString and returns the identity it carries.
func (a *Authenticator) Authority(tokenString string) (*nativecommon.Authority, error) {
	claims, err := a.parseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if err := validateClaims(claims, a.cfg.Issuer, a.cfg.Audience); err != nil {
		return nil, err
	}
	subject, _ := claims["sub"].(string)
	addr, err := crypto.DecodeAddress(strings.TrimSpace(subject))
	if err != nil {
		return nil, errInvalidSubject
	}
	rawRole, _ := claims[a.cfg.RoleClaim].(string)
	role, err := parseRole(rawRole)
	if err != nil {
		return nil, err
	}
	return &nativecommon.Authority{Subject: addr.Raw(), Role: role}, nil
}

// WithAuthority stores auth on ctx.
func WithAuthority(ctx context.Context, auth *nativecommon.Authority) context.Context {
	return context.WithValue(ctx, contextKeyAuthority, auth)
}

// AuthorityFromContext returns the verified caller, or nil for anonymous
// requests.
func AuthorityFromContext(ctx context.Context) *nativecommon.Authority {
	auth, _ := ctx.Value(contextKeyAuthority).(*nativecommon.Authority)
	return auth
}

func parseRole(raw string) (nativecommon.Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "user":
		return nativecommon.RoleUser, nil
	case "partner":
		return nativecommon.RolePartner, nil
	case "admin":
		return nativecommon.RoleAdmin, nil
	default:
		return 0, errUnknownRole
	}
}

func (a *Authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.cfg.ClockSkew))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

func validateClaims(claims jwt.MapClaims, issuer, audience string) error {
	if issuer != "" {
		if value, ok := claims["iss"].(string); !ok || value != issuer {
			return errors.New("issuer mismatch")
		}
	}
	if audience != "" {
		switch val := claims["aud"].(type) {
		case string:
			if val != audience {
				return errors.New("audience mismatch")
			}
		case []interface{}:
			for _, entry := range val {
				if s, ok := entry.(string); ok && s == audience {
					return nil
				}
			}
			return errors.New("audience mismatch")
		default:
			return errors.New("audience mismatch")
		}
	}
	return nil
}

func extractBearer(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeAuthError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
}
