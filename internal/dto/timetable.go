package dto

// ── 课表模块 DTO ──

// TimingRequest 每周上课时段，时间为 24 小时制 HH:MM
type TimingRequest struct {
	Day       string `json:"day"        binding:"required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	StartTime string `json:"start_time" binding:"required,clock"`
	EndTime   string `json:"end_time"   binding:"required,clock"`
}

// CreateCourseRequest 创建课程请求
type CreateCourseRequest struct {
	CourseCode string          `json:"course_code" binding:"required,max=20"`
	CourseName string          `json:"course_name" binding:"required,max=100"`
	Section    string          `json:"section"     binding:"required,max=20"`
	Timings    []TimingRequest `json:"timings"     binding:"required,min=1,dive"`
	Color      string          `json:"color"       binding:"omitempty,hexcolor"`
}

// UpdateCourseRequest 更新课程请求，字段为 nil 表示不修改；Timings 非空时全量替换
type UpdateCourseRequest struct {
	CourseCode *string         `json:"course_code" binding:"omitempty,min=1,max=20"`
	CourseName *string         `json:"course_name" binding:"omitempty,min=1,max=100"`
	Section    *string         `json:"section"     binding:"omitempty,min=1,max=20"`
	Timings    []TimingRequest `json:"timings"     binding:"omitempty,min=1,dive"`
	Color      *string         `json:"color"       binding:"omitempty,hexcolor"`
}

// TimingResponse 上课时段响应
type TimingResponse struct {
	Day       string `json:"day"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CourseResponse 课程响应
type CourseResponse struct {
	ID         string           `json:"id"`
	CourseCode string           `json:"course_code"`
	CourseName string           `json:"course_name"`
	Section    string           `json:"section"`
	Color      string           `json:"color"`
	Source     string           `json:"source"`
	Timings    []TimingResponse `json:"timings"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

// ImportCoursesResponse ICS 导入结果
type ImportCoursesResponse struct {
	ImportedCount int              `json:"imported_count"`
	Imported      []CourseResponse `json:"imported"`
	Skipped       []SkippedCourse  `json:"skipped"`
}

// SkippedCourse 导入时跳过的课程
type SkippedCourse struct {
	CourseCode string `json:"course_code"`
	Section    string `json:"section"`
	Reason     string `json:"reason"` // exists | invalid
}
