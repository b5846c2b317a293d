package dto

// ── 代码片段模块 DTO ──

// CreateSnippetRequest 创建片段请求
// IsViewOnly 仅管理员可设置，学生传入时忽略
type CreateSnippetRequest struct {
	Title       string `json:"title"        binding:"required,max=200"`
	Code        string `json:"code"         binding:"required"`
	Language    string `json:"language"     binding:"omitempty,max=50"`
	Description string `json:"description"`
	IsViewOnly  bool   `json:"is_view_only"`
}

// UpdateSnippetRequest 更新片段请求，字段为 nil 表示不修改
type UpdateSnippetRequest struct {
	Title       *string `json:"title"        binding:"omitempty,min=1,max=200"`
	Code        *string `json:"code"         binding:"omitempty,min=1"`
	Language    *string `json:"language"     binding:"omitempty,max=50"`
	Description *string `json:"description"`
	IsViewOnly  *bool   `json:"is_view_only"`
}

// SnippetResponse 片段响应
type SnippetResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Code           string `json:"code"`
	Language       string `json:"language"`
	Description    string `json:"description"`
	CreatedBy      string `json:"created_by"`
	CreatedByName  string `json:"created_by_name"`
	CreatedByEmail string `json:"created_by_email"`
	IsViewOnly     bool   `json:"is_view_only"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
