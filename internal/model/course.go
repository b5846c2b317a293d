package model

import (
	"strings"

	"gorm.io/gorm"
)

// 课程来源
const (
	CourseSourceManual = "manual"
	CourseSourceICS    = "ics"
)

// DefaultCourseColor 未指定颜色时的兜底色
const DefaultCourseColor = "#6366f1"

// Course 课程表，对应 courses
// 同一用户下 (course_code, section) 唯一
type Course struct {
	CourseID   string `gorm:"type:uuid;primaryKey"                                                          json:"course_id"`
	CourseCode string `gorm:"type:varchar(20);not null;uniqueIndex:uq_courses_owner_code_section,priority:2" json:"course_code"`
	CourseName string `gorm:"type:varchar(100);not null"                                                    json:"course_name"`
	Section    string `gorm:"type:varchar(20);not null;uniqueIndex:uq_courses_owner_code_section,priority:3" json:"section"`
	Color      string `gorm:"type:varchar(7);not null;default:'#6366f1'"                                    json:"color"`
	Source     string `gorm:"type:varchar(20);not null;default:'manual'"                                    json:"source"` // manual | ics
	CreatedBy  string `gorm:"type:uuid;not null;uniqueIndex:uq_courses_owner_code_section,priority:1"        json:"created_by"`
	BaseModel

	// 关联
	Timings []CourseTiming `gorm:"foreignKey:CourseID;references:CourseID" json:"timings"`
}

func (Course) TableName() string { return "courses" }

// BeforeCreate 生成主键
func (c *Course) BeforeCreate(_ *gorm.DB) error {
	ensureID(&c.CourseID)
	return nil
}

// CourseTiming 每周上课时段，对应 course_timings
// StartTime / EndTime 固定为零填充的 HH:MM，字典序即时间序
type CourseTiming struct {
	TimingID  string `gorm:"type:uuid;primaryKey"           json:"timing_id"`
	CourseID  string `gorm:"type:uuid;not null;index"       json:"course_id"`
	DayOfWeek int    `gorm:"type:smallint;not null"         json:"day_of_week"` // 1=Monday … 7=Sunday
	StartTime string `gorm:"type:varchar(5);not null"       json:"start_time"`
	EndTime   string `gorm:"type:varchar(5);not null"       json:"end_time"`
}

func (CourseTiming) TableName() string { return "course_timings" }

// BeforeCreate 生成主键
func (t *CourseTiming) BeforeCreate(_ *gorm.DB) error {
	ensureID(&t.TimingID)
	return nil
}

// Weekdays ISO 星期名称，下标 0 对应 1=Monday
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayNumber 星期名称转 ISO 编号，大小写不敏感
func WeekdayNumber(name string) (int, bool) {
	for i, d := range Weekdays {
		if strings.EqualFold(d, name) {
			return i + 1, true
		}
	}
	return 0, false
}

// WeekdayName ISO 编号转星期名称，越界返回空串
func WeekdayName(n int) string {
	if n < 1 || n > len(Weekdays) {
		return ""
	}
	return Weekdays[n-1]
}
