package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dev-emon1/shoppers-link/pkg/logger"
)

// SessionHeader identifies an anonymous shopper's browser session.
const SessionHeader = "X-Session-ID"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,128}$`)

// Owner is the shopper a request acts for: a signed-in user or a guest session.
type Owner struct {
	// ID namespaces the identity ("user:<id>" or "guest:<session>") and keys
	// all per-shopper state.
	ID        string
	UserID    string
	SessionID string
	// Token is the raw bearer token, forwarded to the backend for
	// user-scoped calls such as order history.
	Token string
}

// Guest reports whether the owner is an anonymous session.
func (o Owner) Guest() bool { return o.UserID == "" }

type ownerCtxKey struct{}

// WithOwner stores the owner in ctx.
func WithOwner(ctx context.Context, o Owner) context.Context {
	ctx = context.WithValue(ctx, ownerCtxKey{}, o)
	return logger.WithOwnerID(ctx, o.ID)
}

// OwnerFromContext returns the owner stored by Identify.
func OwnerFromContext(ctx context.Context) (Owner, bool) {
	o, ok := ctx.Value(ownerCtxKey{}).(Owner)
	return o, ok
}

// Identify resolves the request owner. A bearer token must be a valid HS256
// JWT carrying user_id (or sub); a bad token is rejected even when a session
// header is present. Without a token, a well-formed X-Session-ID makes the
// request a guest. Requests with neither pass through anonymously.
func Identify(secret string, l *slog.Logger) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				scheme, raw, found := strings.Cut(authHeader, " ")
				if !found || !strings.EqualFold(scheme, "bearer") || raw == "" {
					writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
					return
				}

				claims := jwt.MapClaims{}
				token, err := jwt.ParseWithClaims(raw, claims, keyFunc)
				if err != nil || !token.Valid {
					l.WarnContext(r.Context(), "invalid JWT token",
						slog.String("path", r.URL.Path),
						slog.String("error", errString(err)),
					)
					writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
					return
				}

				userID := claimString(claims, "user_id")
				if userID == "" {
					userID = claimString(claims, "sub")
				}
				if userID == "" {
					writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token has no subject")
					return
				}

				owner := Owner{ID: "user:" + userID, UserID: userID, SessionID: sessionID, Token: raw}
				next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
				return
			}

			if sessionID != "" {
				if !sessionIDPattern.MatchString(sessionID) {
					writeJSONError(w, http.StatusBadRequest, "INVALID_INPUT", "malformed session id")
					return
				}
				owner := Owner{ID: "guest:" + sessionID, SessionID: sessionID}
				next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwner rejects requests Identify could not attach an owner to.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := OwnerFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "a bearer token or "+SessionHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects guests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o, ok := OwnerFromContext(r.Context()); !ok || o.Guest() {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// claimString reads a string or numeric claim. The marketplace backend issues
// numeric user ids.
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func errString(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}
