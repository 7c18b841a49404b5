package service

// Scope 每次调用携带的租户 / 分校 / 操作人上下文
// 由 Handler 从 JWT Claims 构造，Service 不读取任何全局状态
type Scope struct {
	TenantID string
	BranchID string
	ActorID  string
}

func (s Scope) actor() *string {
	if s.ActorID == "" {
		return nil
	}
	id := s.ActorID
	return &id
}
