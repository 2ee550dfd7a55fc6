package auth

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// JWTVerifier validates access tokens locally with the shared signing key.
type JWTVerifier struct {
	jwtManager *jwt.Manager
}

func NewJWTVerifier(jwtManager *jwt.Manager) *JWTVerifier {
	return &JWTVerifier{jwtManager: jwtManager}
}

// Verify returns the user id carried by token.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	claims, err := v.jwtManager.ValidateToken(token)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Debug().Err(err).Msg("token validation failed")
		return "", fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}

	userID := claims.Identity()
	if userID == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrAuth)
	}
	return userID, nil
}
