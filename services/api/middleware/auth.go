package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/trackline/trackline/pkg/models"
	"github.com/trackline/trackline/services/api/render"
)

type actorContextKey struct{}
type tokenContextKey struct{}

// TokenTTL is how long a session token stays valid.
const TokenTTL = 7 * 24 * time.Hour

// Auth issues and verifies session tokens. A token is only valid while it is
// present in the user's active set; logout and the expiry sweep remove it.
type Auth struct {
	DB     *sqlx.DB
	Secret []byte
}

func NewAuth(db *sqlx.DB, secret string) *Auth {
	return &Auth{DB: db, Secret: []byte(secret)}
}

// Sign issues a token for the user and records it in the active set.
func (a *Auth) Sign(ctx context.Context, userID uuid.UUID) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
	if err != nil {
		return "", err
	}
	_, err = a.DB.ExecContext(ctx,
		`INSERT INTO user_tokens (user_id, token) VALUES ($1, $2)`, userID, token)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Revoke removes one token from the user's active set.
func (a *Auth) Revoke(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := a.DB.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE user_id = $1 AND token = $2`, userID, token)
	return err
}

// Middleware authenticates the request and puts the acting user on the
// context. An expired token is pruned from the active set on sight.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			render.ErrUnauthorized(w, r, "Please authenticate")
			return
		}

		parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return a.Secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				a.pruneExpired(r.Context(), raw)
			}
			render.ErrUnauthorized(w, r, "Invalid or expired token")
			return
		}

		claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
		if !ok {
			render.ErrUnauthorized(w, r, "Invalid or expired token")
			return
		}
		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			render.ErrUnauthorized(w, r, "Invalid or expired token")
			return
		}

		// The token must still be in the user's active set.
		var user models.User
		err = a.DB.GetContext(r.Context(), &user, `
			SELECT u.* FROM users u
			JOIN user_tokens t ON t.user_id = u.id
			WHERE u.id = $1 AND t.token = $2`, userID, raw)
		if errors.Is(err, sql.ErrNoRows) {
			render.ErrUnauthorized(w, r, "Please authenticate")
			return
		}
		if err != nil {
			render.Err(w, r, err)
			return
		}

		actor := models.Actor{ID: user.ID, CompanyID: user.CompanyID, Role: user.Role}
		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		ctx = context.WithValue(ctx, tokenContextKey{}, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// pruneExpired drops an expired token from the active set. The claims are
// decoded without verification just to find the owning user.
func (a *Auth) pruneExpired(ctx context.Context, raw string) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return
	}
	_, _ = a.DB.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE user_id = $1 AND token = $2`, userID, raw)
}

// ActorFromContext returns the authenticated actor.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(models.Actor)
	return actor, ok
}

// TokenFromContext returns the bearer token the request authenticated with.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok
}
