package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// actorKey ключ идентификатора пользователя в echo.Context
const actorKey = "actor_id"

// ActorAuth проверяет HS256 токен и кладёт subject в контекст как uuid актора.
// Браузер не может выставить заголовок для WebSocket, поэтому токен
// принимается и из параметра token.
func ActorAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request())
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Reason: "missing bearer token"})
			}

			actorID, err := ParseToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Reason: err.Error()})
			}

			c.Set(actorKey, actorID)
			return next(c)
		}
	}
}

// IssueToken выпускает токен для пользователя (CLI, тесты)
func IssueToken(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var (
	errInvalidToken   = errors.New("invalid token")
	errInvalidSubject = errors.New("invalid subject")
)

// ParseToken проверяет подпись и срок токена и возвращает пользователя из subject
func ParseToken(secret, raw string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return uuid.Nil, errInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, errInvalidSubject
	}
	return userID, nil
}

var errNoActor = errors.New("no actor in context")

func actorID(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(actorKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, errNoActor
	}
	return id, nil
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
