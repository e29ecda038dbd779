package grpcserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"
)

type ctxKey string

const userIDKey ctxKey = "fk.userID"

// WithUserID stores the authenticated user ID in context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches the authenticated user ID from context.
func UserIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// userIDFromToken extracts "authorization: Bearer <JWT>", verifies HS256 and
// returns the subject.
func userIDFromToken(ctx context.Context, signKey []byte) (string, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return "", err
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return signKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid token")
	}

	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return "", errors.New("token expired or not valid yet")
	}
	if claims.Subject == "" {
		return "", errors.New("bad subject")
	}
	return claims.Subject, nil
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
