package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/config"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/api/handler"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/api/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/jwt"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil：此时不限流、不检查 Token 黑名单
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// 写接口：仅管理员，按用户限流
	admin := []gin.HandlerFunc{
		middleware.RoleAuth("admin"),
		middleware.RateLimit(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window),
	}
	write := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, admin...), hf)
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, rdb))
	{
		// 节次模块
		periods := v1.Group("/periods")
		{
			periods.GET("", h.Period.ListPeriods)
			periods.GET("/:id", h.Period.GetPeriod)
			periods.POST("", write(h.Period.CreatePeriod)...)
			periods.PUT("/:id", write(h.Period.UpdatePeriod)...)
			periods.DELETE("/:id", write(h.Period.DeletePeriod)...)
		}

		// 课表模块
		timetables := v1.Group("/timetables")
		{
			timetables.GET("", h.Timetable.ListTimetables)
			timetables.GET("/by-class-section", h.Timetable.GetByClassSection)
			timetables.GET("/by-teacher/:teacherId", h.Timetable.GetByTeacher)
			timetables.GET("/by-teacher/:teacherId/ics", h.Export.ExportTeacherCalendar)
			timetables.GET("/:id", h.Timetable.GetTimetable)
			timetables.GET("/:id/export", h.Export.ExportTimetable)
			timetables.POST("", write(h.Timetable.CreateTimetable)...)
			timetables.PUT("/:id", write(h.Timetable.UpdateTimetable)...)
			timetables.DELETE("/:id", write(h.Timetable.DeleteTimetable)...)

			// 条目
			timetables.POST("/:id/entries", write(h.Timetable.AddEntry)...)
			timetables.DELETE("/:id/entries/:entryId", write(h.Timetable.RemoveEntry)...)
			timetables.POST("/:id/entries/validate", write(h.Timetable.ValidateEntries)...)
		}
	}

	return r
}
