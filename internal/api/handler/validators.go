package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/api/middleware"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/internal/model"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/response"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators 向 gin 的校验引擎注册自定义 tag：
//   - clock: "HH:MM" 24 小时制
//   - period_kind: regular / break / lunch / assembly
//
// 校验失败时字段名使用 json tag
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("binding validator is not go-playground/validator")
			return
		}

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})

		if registerErr = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := model.ParseTimeOfDay(fl.Field().String())
			return err == nil
		}); registerErr != nil {
			return
		}
		registerErr = v.RegisterValidation("period_kind", func(fl validator.FieldLevel) bool {
			return model.PeriodKind(fl.Field().String()).Valid()
		})
	})
	return registerErr
}

// fieldError 参数校验失败的字段明细
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// bindJSON 绑定请求体，失败时直接写入响应
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

// bindQuery 绑定查询参数，失败时直接写入响应
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

func writeBindError(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			field := fe.Namespace()
			if i := strings.IndexByte(field, '.'); i >= 0 {
				field = field[i+1:]
			}
			details = append(details, fieldError{Field: field, Rule: fe.Tag()})
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", details)
		return
	}

	response.BadRequest(c, 10001, "参数校验失败")
}
