package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/creator-settlement/internal/http/middleware"
	"github.com/ignatzorin/creator-settlement/internal/logger"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/creator-settlement/internal/service"
)

var (
	// ErrUserNotFound is returned when user is not found in context
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID is returned when UUID parsing fails
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentUserID extracts user ID from Gin context
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotFound
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUserNotFound
	}

	return userID, nil
}

// CurrentUserRole extracts user role from Gin context
func CurrentUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", ErrUserNotFound
	}

	role, ok := raw.(string)
	if !ok {
		return "", ErrUserNotFound
	}

	return role, nil
}

// CurrentActor собирает вызывающего из контекста. При ошибке ответ 401 уже отправлен.
func CurrentActor(c *gin.Context) (service.Actor, bool) {
	userID, err := CurrentUserID(c)
	if err != nil {
		RespondUnauthorized(c, err.Error())
		return service.Actor{}, false
	}
	role, err := CurrentUserRole(c)
	if err != nil {
		RespondUnauthorized(c, err.Error())
		return service.Actor{}, false
	}
	if _, ok := models.ValidRoles[role]; !ok {
		RespondUnauthorized(c, "неизвестная роль")
		return service.Actor{}, false
	}
	return service.Actor{ID: userID, Role: role}, true
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// BindAndValidate binds JSON request and returns properly formatted error
func BindAndValidate(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("ошибка валидации запроса: %w", err)
	}
	return nil
}

// RespondError sends a standardized error response
func RespondError(c *gin.Context, statusCode int, code apperror.ErrorCode, message string) {
	c.JSON(statusCode, gin.H{"error": message, "code": code})
}

// RespondAppError переводит ошибку сервиса в HTTP ответ.
// Внутренние ошибки логируются, клиент получает только код и общее сообщение.
func RespondAppError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err)
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		entry := logger.Log.WithFields(logrus.Fields{
			"code":   appErr.Code,
			"path":   c.FullPath(),
			"method": c.Request.Method,
		})
		if rid, ok := c.Get(middleware.ContextRequestIDKey); ok {
			entry = entry.WithField("request_id", rid)
		}
		entry.WithError(err).Error("request failed")
	}

	RespondError(c, appErr.HTTPStatus, appErr.Code, appErr.Message)
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, apperror.ErrCodeUnauthorized, message)
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, apperror.ErrCodeValidation, message)
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extracts limit and offset from query parameters with defaults
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", models.DefaultPageLimit)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > models.MaxPageLimit {
		limit = models.MaxPageLimit
	}
	if limit < 1 {
		limit = models.DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return
}
