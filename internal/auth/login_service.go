package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/database/repo/accounts"
	"github.com/anoixa/yolo-annotator/internal/apperr"
	"github.com/anoixa/yolo-annotator/utils"
	cryptopackage "github.com/anoixa/yolo-annotator/utils/crypto"
	log "github.com/sirupsen/logrus"
)

const msgBadCredentials = "Incorrect username or password"

// LoginResult 登录结果
type LoginResult struct {
	User              *models.User
	AccessToken       string
	AccessTokenExpiry time.Time
}

// LoginService 登录服务
type LoginService struct {
	accountsRepo *accounts.Repository
	jwtService   *JWTService
}

// NewLoginService 创建新的登录服务
func NewLoginService(accountsRepo *accounts.Repository, jwtService *JWTService) *LoginService {
	return &LoginService{
		accountsRepo: accountsRepo,
		jwtService:   jwtService,
	}
}

// ValidateCredentials 验证用户凭据
func (s *LoginService) ValidateCredentials(ctx context.Context, username, password string) (*models.User, bool, error) {
	user, err := s.accountsRepo.WithContext(ctx).GetUserByUsername(username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}

	if user == nil {
		return nil, false, nil
	}

	ok, err := cryptopackage.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil {
		return nil, false, fmt.Errorf("password comparison failed: %w", err)
	}

	return user, ok, nil
}

// Login 执行登录操作
func (s *LoginService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, valid, err := s.ValidateCredentials(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to validate credentials: %w", err)
	}
	if !valid {
		log.Infof("Failed login attempt for user %q", utils.SanitizeLogUsername(username))
		return nil, apperr.Unauthorized(msgBadCredentials)
	}

	token, expiry, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:              user,
		AccessToken:       token,
		AccessTokenExpiry: expiry,
	}, nil
}
