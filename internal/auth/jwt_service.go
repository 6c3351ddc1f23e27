package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
)

// MinSecretLength HS256 密钥最小长度
const MinSecretLength = 32

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSubject = errors.New("token has no subject")
)

// TokenClaims JWT 令牌声明
type TokenClaims struct {
	Subject string `mapstructure:"sub"`
	Role    string `mapstructure:"role"`
	Exp     int64  `mapstructure:"exp"`
	Iat     int64  `mapstructure:"iat"`
}

// TokenConfig 保存 JWT 配置
type TokenConfig struct {
	Secret    []byte
	ExpiresIn time.Duration
}

// JWTService JWT Token 服务
type JWTService struct {
	config TokenConfig
	now    func() time.Time
}

// NewJWTService 创建新的 JWT 服务，secret 为空时生成进程级随机密钥
func NewJWTService(secret string, ttl time.Duration) (*JWTService, error) {
	if secret == "" {
		generated, err := utils.GenerateRandomToken(48)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		log.Warn("[JWT] jwt_secret not configured, using a random secret; tokens will not survive a restart")
		secret = generated
	}

	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("JWT secret must be at least %d characters long, got %d", MinSecretLength, len(secret))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid JWT access token TTL: %s", ttl)
	}

	return &JWTService{
		config: TokenConfig{Secret: []byte(secret), ExpiresIn: ttl},
		now:    time.Now,
	}, nil
}

// GetConfig 获取当前 JWT 配置（只读）
func (s *JWTService) GetConfig() TokenConfig {
	return TokenConfig{
		Secret:    append([]byte{}, s.config.Secret...),
		ExpiresIn: s.config.ExpiresIn,
	}
}

// GenerateAccessToken 生成访问令牌，sub 为用户名
func (s *JWTService) GenerateAccessToken(user *models.User) (string, time.Time, error) {
	return s.generate(user.Username, user.Role, s.config.ExpiresIn)
}

func (s *JWTService) generate(subject, role string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  expiry.Unix(),
		"iat":  now.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate access token: %w", err)
	}
	return token, expiry, nil
}

// ParseToken 解析和验证 JWT 令牌
func (s *JWTService) ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.config.Secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractClaims 从令牌中提取声明
func (s *JWTService) ExtractClaims(tokenString string) (*TokenClaims, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	var out TokenClaims
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(claims)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if out.Subject == "" {
		return nil, ErrMissingSubject
	}
	return &out, nil
}
