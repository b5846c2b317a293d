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

// ── 代码片段模块业务错误 ──

var (
	ErrSnippetNotFound = errors.New("代码片段不存在")
	ErrSnippetReadOnly = errors.New("只读片段不可修改")
)

// SnippetService 代码片段业务接口
//
// 可见性规则：
//   - 管理员可见全部片段
//   - 学生可见本人片段与管理员发布的只读片段
//   - 只读片段仅管理员可修改；删除限本人或管理员
type SnippetService interface {
	List(ctx context.Context, p Principal) ([]dto.SnippetResponse, error)
	Get(ctx context.Context, p Principal, id string) (*dto.SnippetResponse, error)
	Create(ctx context.Context, p Principal, req *dto.CreateSnippetRequest) (*dto.SnippetResponse, error)
	Update(ctx context.Context, p Principal, id string, req *dto.UpdateSnippetRequest) (*dto.SnippetResponse, error)
	Delete(ctx context.Context, p Principal, id string) error
}

type snippetService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSnippetService 创建 SnippetService 实例
func NewSnippetService(repo *repository.Repository, logger *zap.Logger) SnippetService {
	return &snippetService{repo: repo, logger: logger}
}

func (s *snippetService) List(ctx context.Context, p Principal) ([]dto.SnippetResponse, error) {
	var (
		snippets []model.Snippet
		err      error
	)
	if p.IsAdmin() {
		snippets, err = s.repo.Snippet.ListAll(ctx)
	} else {
		snippets, err = s.repo.Snippet.ListVisibleTo(ctx, p.UserID)
	}
	if err != nil {
		s.logger.Error("查询代码片段失败", zap.Error(err))
		return nil, err
	}

	list := make([]dto.SnippetResponse, 0, len(snippets))
	for i := range snippets {
		list = append(list, toSnippetResponse(&snippets[i]))
	}
	return list, nil
}

func (s *snippetService) Get(ctx context.Context, p Principal, id string) (*dto.SnippetResponse, error) {
	snippet, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && snippet.CreatedBy != p.UserID && !snippet.IsViewOnly {
		return nil, ErrPermissionDenied
	}
	resp := toSnippetResponse(snippet)
	return &resp, nil
}

func (s *snippetService) Create(ctx context.Context, p Principal, req *dto.CreateSnippetRequest) (*dto.SnippetResponse, error) {
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = "text"
	}
	snippet := &model.Snippet{
		Title:          strings.TrimSpace(req.Title),
		Code:           req.Code,
		Language:       language,
		Description:    req.Description,
		CreatedBy:      p.UserID,
		CreatedByName:  p.Name,
		CreatedByEmail: p.Email,
		// 学生提交的只读标记忽略
		IsViewOnly: p.IsAdmin() && req.IsViewOnly,
	}
	if err := s.repo.Snippet.Create(ctx, snippet); err != nil {
		s.logger.Error("创建代码片段失败", zap.Error(err))
		return nil, err
	}
	resp := toSnippetResponse(snippet)
	return &resp, nil
}

func (s *snippetService) Update(ctx context.Context, p Principal, id string, req *dto.UpdateSnippetRequest) (*dto.SnippetResponse, error) {
	snippet, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		if snippet.IsViewOnly {
			return nil, ErrSnippetReadOnly
		}
		if snippet.CreatedBy != p.UserID {
			return nil, ErrPermissionDenied
		}
	}

	if req.Title != nil {
		snippet.Title = strings.TrimSpace(*req.Title)
	}
	if req.Code != nil {
		snippet.Code = *req.Code
	}
	if req.Language != nil {
		snippet.Language = strings.TrimSpace(*req.Language)
	}
	if req.Description != nil {
		snippet.Description = *req.Description
	}
	if req.IsViewOnly != nil && p.IsAdmin() {
		snippet.IsViewOnly = *req.IsViewOnly
	}

	if err := s.repo.Snippet.Update(ctx, snippet); err != nil {
		s.logger.Error("更新代码片段失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	resp := toSnippetResponse(snippet)
	return &resp, nil
}

func (s *snippetService) Delete(ctx context.Context, p Principal, id string) error {
	snippet, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && snippet.CreatedBy != p.UserID {
		return ErrPermissionDenied
	}
	if err := s.repo.Snippet.Delete(ctx, id); err != nil {
		s.logger.Error("删除代码片段失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *snippetService) load(ctx context.Context, id string) (*model.Snippet, error) {
	snippet, err := s.repo.Snippet.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnippetNotFound
		}
		s.logger.Error("查询代码片段失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return snippet, nil
}

func toSnippetResponse(s *model.Snippet) dto.SnippetResponse {
	return dto.SnippetResponse{
		ID:             s.SnippetID,
		Title:          s.Title,
		Code:           s.Code,
		Language:       s.Language,
		Description:    s.Description,
		CreatedBy:      s.CreatedBy,
		CreatedByName:  s.CreatedByName,
		CreatedByEmail: s.CreatedByEmail,
		IsViewOnly:     s.IsViewOnly,
		CreatedAt:      formatTime(s.CreatedAt),
		UpdatedAt:      formatTime(s.UpdatedAt),
	}
}
