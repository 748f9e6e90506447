package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

// DefaultRoomTokenTTL defines the fallback validity period for audio room tokens.
const DefaultRoomTokenTTL = 24 * time.Hour

// audioRoomAudience marks tokens that only grant entry to a grove's audio room.
const audioRoomAudience = "audio-room"

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	RoomTokenTTL   time.Duration
	Clock          func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID  string `json:"uid"`
	GroveID string `json:"grove_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTService is responsible for issuing and validating JSON Web Tokens.
type JWTService struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	roomTTL time.Duration
	now     func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	roomTTL := cfg.RoomTokenTTL
	if roomTTL <= 0 {
		roomTTL = DefaultRoomTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret:  []byte(cfg.Secret),
		issuer:  cfg.Issuer,
		ttl:     ttl,
		roomTTL: roomTTL,
		now:     now,
	}, nil
}

// GenerateAccessToken issues a signed JWT identifying the supplied user.
func (s *JWTService) GenerateAccessToken(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("jwt: user id is required")
	}
	return s.sign(&Claims{UserID: userID}, s.ttl)
}

// GenerateRoomToken issues a short-lived token granting entry to one grove's
// audio room. The media transport validates it out of process; the engine only
// decides who receives one.
func (s *JWTService) GenerateRoomToken(userID, groveID string) (string, time.Duration, error) {
	if userID == "" || groveID == "" {
		return "", 0, errors.New("jwt: user id and grove id are required")
	}

	token, err := s.sign(&Claims{
		UserID:  userID,
		GroveID: groveID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{audioRoomAudience},
		},
	}, s.roomTTL)
	if err != nil {
		return "", 0, err
	}
	return token, s.roomTTL, nil
}

func (s *JWTService) sign(claims *Claims, ttl time.Duration) (string, error) {
	now := s.now()

	claims.Subject = claims.UserID
	claims.Issuer = s.issuer
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken parses and validates a signed JWT, returning the application claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}

	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}

	return &claims, nil
}
