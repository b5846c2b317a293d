package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/model"
	"bytecopied/backend/internal/repository"
)

// ── 用户模块业务错误 ──

var (
	ErrUserSelfDelete = errors.New("不能删除自己")
	ErrInvalidRole    = errors.New("角色不合法")
)

// UserService 用户业务接口
// SetRole / DeleteByEmail 供运维命令行使用，不暴露为 HTTP 接口
type UserService interface {
	List(ctx context.Context, p Principal, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	SetRole(ctx context.Context, email, role string) (*dto.UserResponse, error)
	DeleteByEmail(ctx context.Context, email string) error
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, p Principal, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	if !p.IsAdmin() {
		return nil, 0, ErrPermissionDenied
	}

	users, total, err := s.repo.User.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	return list, total, nil
}

// ────────────────────── SetRole ──────────────────────

func (s *userService) SetRole(ctx context.Context, email, role string) (*dto.UserResponse, error) {
	if role != model.RoleAdmin && role != model.RoleStudent {
		return nil, ErrInvalidRole
	}

	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.repo.User.UpdateRole(ctx, user.UserID, role); err != nil {
		s.logger.Error("更新用户角色失败", zap.String("user_id", user.UserID), zap.Error(err))
		return nil, err
	}
	user.Role = role

	s.logger.Info("用户角色已更新", zap.String("email", user.Email), zap.String("role", role))
	resp := toUserResponse(user)
	return &resp, nil
}

// ────────────────────── DeleteByEmail ──────────────────────

func (s *userService) DeleteByEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrUserNotFound
	}
	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.repo.User.Delete(ctx, user.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("删除用户失败", zap.String("user_id", user.UserID), zap.Error(err))
		return err
	}
	s.logger.Info("用户已删除", zap.String("email", user.Email))
	return nil
}
