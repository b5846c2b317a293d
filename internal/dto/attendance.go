package dto

// ── 签到模块 DTO ──

// StartSessionRequest 开启签到请求
// Section / TimerDuration 的取值集合由配置决定，服务层校验
type StartSessionRequest struct {
	Section       string `json:"section"        binding:"required,max=10"`
	TimerDuration int    `json:"timer_duration" binding:"required,min=1"`
}

// SubmitAttendanceRequest 学生签到请求
type SubmitAttendanceRequest struct {
	SessionID  string `json:"session_id"  binding:"required,uuid"`
	RollNumber string `json:"roll_number" binding:"required,rollnumber"`
}

// EndSessionRequest 结束签到请求
type EndSessionRequest struct {
	SessionID string `json:"session_id" binding:"required,uuid"`
	Format    string `json:"format"     binding:"omitempty,oneof=xlsx csv"`
}

// ── 签到模块响应 ──

// SessionView 签到会话视图
// 管理员视图携带统计字段；学生视图仅携带 HasSubmitted
type SessionView struct {
	SessionID     string `json:"session_id"`
	Section       string `json:"section"`
	TimerDuration int    `json:"timer_duration"`
	Status        string `json:"status"`
	StartedAt     string `json:"started_at"`
	Deadline      string `json:"deadline"`
	ServerTime    string `json:"server_time"`
	TimeRemaining int    `json:"time_remaining"` // 秒

	// 管理员视图
	TotalStudents  *int    `json:"total_students,omitempty"`
	SubmittedCount *int    `json:"submitted_count,omitempty"`
	PresentCount   *int    `json:"present_count,omitempty"`
	AbsentCount    *int    `json:"absent_count,omitempty"`
	UnmatchedCount *int    `json:"unmatched_count,omitempty"`
	EndedAt        *string `json:"ended_at,omitempty"`

	// 学生视图
	HasSubmitted *bool `json:"has_submitted,omitempty"`
}

// SubmissionStatusResponse 当前用户在某会话的签到状态
type SubmissionStatusResponse struct {
	SessionID    string  `json:"session_id"`
	HasSubmitted bool    `json:"has_submitted"`
	RollNumber   string  `json:"roll_number,omitempty"`
	SubmittedAt  *string `json:"submitted_at,omitempty"`
}

// SubmitResponse 签到结果
// 重复提交视为幂等成功：Submitted=true，AlreadySubmitted=true，Reason 说明原因
type SubmitResponse struct {
	Submitted        bool   `json:"submitted"`
	AlreadySubmitted bool   `json:"already_submitted"`
	Reason           string `json:"reason,omitempty"` // self | roll_number
	RollNumber       string `json:"roll_number"`
	SubmittedAt      string `json:"submitted_at,omitempty"`
}
