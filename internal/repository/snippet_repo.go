package repository

import (
	"context"

	"gorm.io/gorm"

	"bytecopied/backend/internal/model"
)

// SnippetRepository 代码片段数据访问接口
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	ListAll(ctx context.Context) ([]model.Snippet, error)
	ListVisibleTo(ctx context.Context, userID string) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}

type snippetRepo struct {
	db *gorm.DB
}

// NewSnippetRepo 创建 SnippetRepository 实例
func NewSnippetRepo(db *gorm.DB) SnippetRepository {
	return &snippetRepo{db: db}
}

func (r *snippetRepo) Create(ctx context.Context, snippet *model.Snippet) error {
	return r.db.WithContext(ctx).Create(snippet).Error
}

func (r *snippetRepo) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var snippet model.Snippet
	err := r.db.WithContext(ctx).
		Where("snippet_id = ?", id).
		First(&snippet).Error
	if err != nil {
		return nil, err
	}
	return &snippet, nil
}

func (r *snippetRepo) ListAll(ctx context.Context) ([]model.Snippet, error) {
	var snippets []model.Snippet
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&snippets).Error
	return snippets, err
}

// ListVisibleTo 本人创建的片段 + 管理员发布的只读片段
func (r *snippetRepo) ListVisibleTo(ctx context.Context, userID string) ([]model.Snippet, error) {
	var snippets []model.Snippet
	err := r.db.WithContext(ctx).
		Where("created_by = ? OR is_view_only = ?", userID, true).
		Order("created_at DESC").
		Find(&snippets).Error
	return snippets, err
}

func (r *snippetRepo) Update(ctx context.Context, snippet *model.Snippet) error {
	return r.db.WithContext(ctx).
		Model(snippet).
		Where("snippet_id = ?", snippet.SnippetID).
		Updates(map[string]interface{}{
			"title":        snippet.Title,
			"code":         snippet.Code,
			"language":     snippet.Language,
			"description":  snippet.Description,
			"is_view_only": snippet.IsViewOnly,
			"updated_at":   gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *snippetRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("snippet_id = ?", id).
		Delete(&model.Snippet{}).Error
}
