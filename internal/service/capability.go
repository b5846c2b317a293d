package service

import "bytecopied/backend/internal/model"

// Capability 签到模块的操作能力
type Capability int

const (
	CapViewAll Capability = iota + 1
	CapViewOwn
	CapStartSession
	CapEndSession
	CapSubmit
)

// CapabilitySet 能力集合
type CapabilitySet map[Capability]struct{}

// Has 是否具备指定能力
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func newCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

var roleCapabilities = map[string]CapabilitySet{
	model.RoleAdmin:   newCapabilitySet(CapViewAll, CapStartSession, CapEndSession),
	model.RoleStudent: newCapabilitySet(CapViewOwn, CapSubmit),
}

// CapabilitiesFor 返回角色对应的能力集合，未知角色为空集
func CapabilitiesFor(role string) CapabilitySet {
	if set, ok := roleCapabilities[role]; ok {
		return set
	}
	return CapabilitySet{}
}

// Principal 已认证的调用方，由 JWT 中间件解析
type Principal struct {
	UserID string
	Role   string
	Name   string
	Email  string
}

// Can 调用方是否具备指定能力
func (p Principal) Can(c Capability) bool {
	return CapabilitiesFor(p.Role).Has(c)
}

// IsAdmin 调用方是否为管理员
func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}
