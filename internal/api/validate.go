package api

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
)

var registerOnce sync.Once

// registerValidators installs the domain formats on gin's validator:
// "hhmm" for 24-hour clock strings and "dateymd" for YYYY-MM-DD dates.
// The builtin "timezone" rule covers IANA zone names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseClock(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("dateymd", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseDate(fl.Field().String())
			return err == nil
		})
	})
}
