package dto

// ── 节次模块 DTO ──

// CreatePeriodRequest 创建节次请求
type CreatePeriodRequest struct {
	Name         string `json:"name"          binding:"required,min=1,max=50"`
	StartTime    string `json:"start_time"    binding:"required,clock"` // "09:00"
	EndTime      string `json:"end_time"      binding:"required,clock"` // "09:45"
	DisplayOrder int    `json:"display_order" binding:"omitempty,min=0"`
	Kind         string `json:"kind"          binding:"omitempty,period_kind"`
}

// UpdatePeriodRequest 更新节次请求（仅更新非空字段）
type UpdatePeriodRequest struct {
	Name         *string `json:"name"          binding:"omitempty,min=1,max=50"`
	StartTime    *string `json:"start_time"    binding:"omitempty,clock"`
	EndTime      *string `json:"end_time"      binding:"omitempty,clock"`
	DisplayOrder *int    `json:"display_order" binding:"omitempty,min=0"`
	Kind         *string `json:"kind"          binding:"omitempty,period_kind"`
}

// PeriodResponse 节次信息响应
type PeriodResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	DisplayOrder int    `json:"display_order"`
	Kind         string `json:"kind"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// PeriodBrief 节次简要信息（嵌入课表条目）
type PeriodBrief struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Kind      string `json:"kind"`
}
