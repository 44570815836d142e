package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/auth"
	"portal/internal/dashboard"
	"portal/internal/httpmiddleware"
	"portal/internal/live"
)

var validatorsOnce sync.Once

// registerValidators adds the portal rules to gin's validator and reports
// fields by their JSON names.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return auth.StrongPassword(fl.Field().String())
		})
	})
}

// bind decodes the JSON body into dst and answers 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindMessage(err)})
		return false
	}
	return true
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return account.ErrEmailRequired.Error()
	case "strongpassword":
		return account.ErrWeakPassword.Error()
	case "url":
		return fmt.Sprintf("%s must be a valid url", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// fail maps a service error to a status and message.
func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case account.IsValidation(err), errors.Is(err, dashboard.ErrInvalid):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrWeakPassword):
		status, msg = http.StatusBadRequest, "the password is too weak"
	case errors.Is(err, auth.ErrInvalidEmail):
		status, msg = http.StatusBadRequest, "the email address is not valid"
	case errors.Is(err, auth.ErrEmailInUse):
		status, msg = http.StatusConflict, "this email is already registered"
	case errors.Is(err, dashboard.ErrForbidden), errors.Is(err, live.ErrQueryForbidden):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, dashboard.ErrNotFound), errors.Is(err, live.ErrUnknownQuery):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, dashboard.ErrAlreadyHandled):
		status, msg = http.StatusConflict, err.Error()
	default:
		_ = c.Error(err)
		h.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", httpmiddleware.RequestIDFrom(c)),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
