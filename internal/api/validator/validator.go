// Package validator 注册业务自定义的 binding 校验标签
package validator

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	// RollNumberTag 签到学号：去空白后非空，至多 32 位，仅字母数字与连字符
	RollNumberTag = "rollnumber"
	// EnrollmentTag 注册学号：AU + 7 位数字，大小写不敏感
	EnrollmentTag = "enrollment"
	// ClockTag 24 小时制 HH:MM，小时可省略前导零
	ClockTag = "clock"

	rollNumberMaxLen = 32
)

var (
	rollNumberRegex = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	enrollmentRegex = regexp.MustCompile(`(?i)^AU\d{7}$`)
	clockRegex      = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)
)

// Register 将自定义标签注册到给定的 validator 实例
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation(RollNumberTag, validateRollNumber); err != nil {
		return err
	}
	if err := v.RegisterValidation(EnrollmentTag, validateEnrollment); err != nil {
		return err
	}
	return v.RegisterValidation(ClockTag, validateClock)
}

// RegisterGin 注册到 gin 默认的 binding 校验器
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return Register(v)
}

func validateRollNumber(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" || len(s) > rollNumberMaxLen {
		return false
	}
	return rollNumberRegex.MatchString(s)
}

func validateEnrollment(fl validator.FieldLevel) bool {
	return enrollmentRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validateClock(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}
