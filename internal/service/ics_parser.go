package service

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/model"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将 iCalendar (RFC 5545) 内容解析为每周课表草稿。
//
//   - SUMMARY 首个词作为课程代码，其余部分作为课程名
//   - DTSTART 确定星期与开始时间；DTEND 缺失时按 DURATION 推算
//   - RRULE 为 WEEKLY 且带 BYDAY 时按 BYDAY 展开星期
//   - 同一课程代码的多个事件合并，重复时段去重
//   - 跨天或时长非正的事件跳过（含全天事件）
// ─────────────────────────────────────────────────────────────

// icsCourse ICS 解析中间结构
type icsCourse struct {
	Code    string
	Name    string
	Timings []dto.TimingRequest
}

// DURATION 与 RRULE 按属性名读取，兼容未导出对应常量的 golang-ical 版本
const (
	icsPropDuration = ics.ComponentProperty("DURATION")
	icsPropRrule    = ics.ComponentProperty("RRULE")
)

var icsWeekdays = map[string]int{
	"MO": 1, "TU": 2, "WE": 3, "TH": 4, "FR": 5, "SA": 6, "SU": 7,
}

// parseICS 解析 ICS 内容，loc 用于解释不带时区的时间
func parseICS(r io.Reader, loc *time.Location) ([]icsCourse, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	var (
		order  []string
		byCode = make(map[string]*icsCourse)
	)
	for _, evt := range cal.Events() {
		code, name, timings, ok := parseVEvent(evt, loc)
		if !ok {
			continue
		}
		c, exists := byCode[code]
		if !exists {
			c = &icsCourse{Code: code, Name: name}
			byCode[code] = c
			order = append(order, code)
		}
		for _, t := range timings {
			if !containsTiming(c.Timings, t) {
				c.Timings = append(c.Timings, t)
			}
		}
	}

	result := make([]icsCourse, 0, len(order))
	for _, code := range order {
		result = append(result, *byCode[code])
	}
	return result, nil
}

// parseVEvent 解析单个 VEVENT
func parseVEvent(evt *ics.VEvent, loc *time.Location) (code, name string, timings []dto.TimingRequest, ok bool) {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil {
		return "", "", nil, false
	}
	code, name = splitSummary(summary.Value)
	if code == "" {
		return "", "", nil, false
	}

	dtStart, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return "", "", nil, false
	}
	dtEnd, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		dur, ok := eventDuration(evt)
		if !ok {
			return "", "", nil, false
		}
		dtEnd = dtStart.Add(dur)
	}

	// 只接受同一天内、时长为正的时段
	if !sameDay(dtStart, dtEnd) || !dtEnd.After(dtStart) {
		return "", "", nil, false
	}
	start, end := dtStart.Format("15:04"), dtEnd.Format("15:04")
	if end <= start {
		return "", "", nil, false
	}

	for _, day := range eventDays(evt, dtStart) {
		timings = append(timings, dto.TimingRequest{
			Day:       model.WeekdayName(day),
			StartTime: start,
			EndTime:   end,
		})
	}
	return code, name, timings, len(timings) > 0
}

// splitSummary 首个词为课程代码；只有一个词时课程名与代码相同
func splitSummary(summary string) (code, name string) {
	fields := strings.Fields(summary)
	if len(fields) == 0 {
		return "", ""
	}
	code = strings.ToUpper(fields[0])
	name = strings.Join(fields[1:], " ")
	if name == "" {
		name = fields[0]
	}
	return code, name
}

// eventDays WEEKLY + BYDAY 时返回 BYDAY 列出的星期，否则返回 DTSTART 所在星期
func eventDays(evt *ics.VEvent, dtStart time.Time) []int {
	if prop := evt.GetProperty(icsPropRrule); prop != nil {
		freq, byDay := parseRRule(prop.Value)
		if freq == "WEEKLY" && len(byDay) > 0 {
			return byDay
		}
	}
	return []int{goWeekdayToISO(dtStart.Weekday())}
}

// parseRRule 解析 RRULE 中的 FREQ 与 BYDAY（如 FREQ=WEEKLY;BYDAY=MO,WE）
func parseRRule(value string) (freq string, byDay []int) {
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			freq = strings.ToUpper(kv[1])
		case "BYDAY":
			for _, d := range strings.Split(kv[1], ",") {
				d = strings.ToUpper(strings.TrimSpace(d))
				// 忽略序号前缀，如 1MO
				if len(d) > 2 {
					d = d[len(d)-2:]
				}
				if n, ok := icsWeekdays[d]; ok && !containsInt(byDay, n) {
					byDay = append(byDay, n)
				}
			}
		}
	}
	return freq, byDay
}

// eventDuration 解析 DURATION，仅支持 PT 开头的时分秒形式（如 PT1H30M）
func eventDuration(evt *ics.VEvent) (time.Duration, bool) {
	prop := evt.GetProperty(icsPropDuration)
	if prop == nil {
		return 0, false
	}
	v := strings.ToUpper(strings.TrimSpace(prop.Value))
	if !strings.HasPrefix(v, "PT") {
		return 0, false
	}
	d, err := time.ParseDuration(strings.ToLower(strings.TrimPrefix(v, "PT")))
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
// UTC 时间转换到 loc；带 TZID 时按该时区解释；浮动时间按 loc 解释
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}
	val := strings.TrimSpace(prop.Value)

	tzLoc := loc
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			if l, err := time.LoadLocation(v[0]); err == nil {
				tzLoc = l
			}
		}
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}

// goWeekdayToISO 将 time.Weekday (0=Sunday) 转为 ISO 8601 (1=Monday … 7=Sunday)
func goWeekdayToISO(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func containsTiming(list []dto.TimingRequest, t dto.TimingRequest) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}
