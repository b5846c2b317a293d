package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// 支持的报表格式
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// ErrUnsupportedFormat 不支持的报表格式
var ErrUnsupportedFormat = errors.New("不支持的报表格式")

// Data 签到报表内容
// Present / Unmatched 按提交先后排列，Absent 按花名册顺序排列
type Data struct {
	SessionID     string
	Section       string
	TimerDuration int // 秒
	StartedAt     time.Time
	EndedAt       time.Time
	TotalStudents int
	Present       []string
	Absent        []string
	Unmatched     []string
}

// PresentRate 出勤率（百分比，保留一位小数）
func (d *Data) PresentRate() string {
	if d.TotalStudents == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(len(d.Present))*100/float64(d.TotalStudents))
}

// Renderer 报表渲染器
type Renderer interface {
	Render(d *Data) ([]byte, error)
	ContentType() string
	Extension() string
}

// NewRenderer 按格式名返回渲染器，空字符串默认 xlsx
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatXLSX:
		return xlsxRenderer{}, nil
	case FormatCSV:
		return csvRenderer{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Filename 报表下载文件名：attendance_<班级>_<结束时间毫秒>.<扩展名>
func Filename(d *Data, r Renderer) string {
	return fmt.Sprintf("attendance_%s_%d.%s", d.Section, d.EndedAt.UnixMilli(), r.Extension())
}

// summaryRows 报表头部信息，xlsx 与 csv 共用
func summaryRows(d *Data) [][]string {
	return [][]string{
		{"班级", d.Section},
		{"会话", d.SessionID},
		{"开始时间", d.StartedAt.Format(time.DateTime)},
		{"结束时间", d.EndedAt.Format(time.DateTime)},
		{"签到时长(秒)", fmt.Sprint(d.TimerDuration)},
		{"应到人数", fmt.Sprint(d.TotalStudents)},
		{"出勤", fmt.Sprint(len(d.Present))},
		{"缺勤", fmt.Sprint(len(d.Absent))},
		{"未在花名册", fmt.Sprint(len(d.Unmatched))},
		{"出勤率", d.PresentRate()},
	}
}
