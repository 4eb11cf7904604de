package service

import (
	"context"
	"strings"

	"hustconnect/internal/model"
	"hustconnect/internal/repository"
	"hustconnect/pkg/apperr"
	"hustconnect/pkg/db"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/password"
	"hustconnect/pkg/redis"
)

type UserService struct {
	repo       *repository.UserRepository
	jwtService *jwt.JWTService
	presence   *redis.Presence
}

func NewUserService(repo *repository.UserRepository, jwtService *jwt.JWTService, presence *redis.Presence) *UserService {
	return &UserService{repo: repo, jwtService: jwtService, presence: presence}
}

// Register 注册
func (s *UserService) Register(ctx context.Context, name, email, plainPassword, role string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, apperr.InvalidArgument("name and email are required")
	}
	if err := password.Validate(plainPassword); err != nil {
		return nil, apperr.InvalidArgument("%s", err.Error())
	}
	if role == "" {
		role = model.RoleNormal
	}
	if role != model.RoleNormal && role != model.RoleHR {
		return nil, apperr.InvalidArgument("role must be normal or hr")
	}

	// 密码哈希
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       "active",
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, apperr.Internal(err, "failed to create user")
	}
	return s.issue(user)
}

// Login 登录
func (s *UserService) Login(ctx context.Context, email, plainPassword string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || plainPassword == "" {
		return nil, apperr.InvalidArgument("email and password are required")
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, apperr.Internal(err, "failed to load user")
	}
	if !password.Verify(plainPassword, u.PasswordHash) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return s.issue(u)
}

func (s *UserService) issue(u *model.User) (*AuthResult, error) {
	// 使用用户ID作为 subject
	token, err := s.jwtService.GenerateToken(u.ID, map[string]interface{}{"name": u.Name, "role": u.Role})
	if err != nil {
		return nil, apperr.Internal(err, "failed to issue token")
	}
	return &AuthResult{User: toUserView(u), Token: token}, nil
}

// Me 当前用户信息
func (s *UserService) Me(ctx context.Context, userID uint) (*UserView, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return toUserView(u), nil
}

// Presence 用户在线状态
func (s *UserService) Presence(ctx context.Context, userID uint) (*redis.PresenceData, error) {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	data, err := s.presence.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load presence")
	}
	return data, nil
}
