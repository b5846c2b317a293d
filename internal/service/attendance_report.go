package service

import "bytecopied/backend/internal/model"

// Reconciliation 花名册与签到记录的对账结果
type Reconciliation struct {
	Present   []string // 已签到且在花名册中，按提交先后
	Absent    []string // 在花名册中但未签到，按花名册顺序
	Unmatched []string // 已签到但不在花名册中，按提交先后
}

// Reconcile 对账
// 输入的 submissions 需按提交先后排序；len(Present)+len(Absent) 恒等于 len(roster)
func Reconcile(roster []string, submissions []model.AttendanceSubmission) Reconciliation {
	inRoster := make(map[string]struct{}, len(roster))
	for _, roll := range roster {
		inRoster[roll] = struct{}{}
	}

	submitted := make(map[string]struct{}, len(submissions))
	r := Reconciliation{
		Present:   make([]string, 0, len(submissions)),
		Absent:    make([]string, 0),
		Unmatched: make([]string, 0),
	}
	for _, sub := range submissions {
		if _, dup := submitted[sub.RollNumber]; dup {
			continue
		}
		submitted[sub.RollNumber] = struct{}{}
		if _, ok := inRoster[sub.RollNumber]; ok {
			r.Present = append(r.Present, sub.RollNumber)
		} else {
			r.Unmatched = append(r.Unmatched, sub.RollNumber)
		}
	}

	for _, roll := range roster {
		if _, ok := submitted[roll]; !ok {
			r.Absent = append(r.Absent, roll)
		}
	}
	return r
}
