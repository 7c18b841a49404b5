package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/api/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/service"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/response"
)

// MustGetScope 从 Gin 上下文中取出调用方作用域（租户 + 分校 + 操作人）。
// JWT 中间件未注入完整身份时写入 401 响应并返回 false，调用方应直接 return。
func MustGetScope(c *gin.Context) (service.Scope, bool) {
	userID := c.GetString(middleware.CtxUserID)
	tenantID := c.GetString(middleware.CtxTenantID)
	branchID := c.GetString(middleware.CtxBranchID)
	if userID == "" || tenantID == "" || branchID == "" {
		response.Unauthorized(c, 10002, "未认证")
		return service.Scope{}, false
	}
	return service.Scope{TenantID: tenantID, BranchID: branchID, ActorID: userID}, true
}

// MustGetPathID 读取并校验 UUID 形式的路径参数
func MustGetPathID(c *gin.Context, name, label string) (string, bool) {
	id := c.Param(name)
	if id == "" {
		response.BadRequest(c, 10001, label+"不能为空")
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(c, 10001, label+"格式无效")
		return "", false
	}
	return id, true
}
