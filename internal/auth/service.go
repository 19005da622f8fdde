package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	accessTokenTTL  = 12 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

var ErrRefreshDisabled = errors.New("refresh tokens disabled")

type Claims struct {
	RiderID string `json:"rider_id"`
	jwt.RegisteredClaims
}

// Service signs rider tokens. Refresh tokens live in redis; without a redis
// client only access tokens are issued.
type Service struct {
	secret []byte
	redis  *redis.Client
}

func NewService(secret string, redisClient *redis.Client) *Service {
	return &Service{
		secret: []byte(secret),
		redis:  redisClient,
	}
}

func (s *Service) GenerateTokens(ctx context.Context, riderID string) (TokenResponse, error) {
	if riderID == "" {
		return TokenResponse{}, errors.New("rider id required")
	}
	access, err := s.signToken(riderID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	resp := TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}
	if s.redis == nil {
		return resp, nil
	}

	refresh, err := s.signToken(riderID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	if err := s.redis.Set(ctx, refreshKey(refresh), riderID, refreshTokenTTL).Err(); err != nil {
		return TokenResponse{}, err
	}
	resp.RefreshToken = refresh
	return resp, nil
}

// ValidateRefreshToken checks the signature and that the token is still
// registered, then revokes it so each refresh token is used once.
func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	if s.redis == nil {
		return "", ErrRefreshDisabled
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	riderID, err := s.redis.GetDel(ctx, refreshKey(token)).Result()
	if err != nil || riderID != claims.RiderID {
		return "", errors.New("refresh token invalid")
	}
	return claims.RiderID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.RiderID, nil
}

func (s *Service) signToken(riderID string, ttl time.Duration) (string, error) {
	claims := Claims{
		RiderID: riderID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func refreshKey(token string) string {
	return "auth:refresh:" + token
}
