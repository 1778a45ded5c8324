// Package handler содержит HTTP-интерфейс сервиса исследований души.
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"soul-server/internal/service"
)

// APIError — стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

type startRequest struct {
	Input string `json:"input" binding:"required"`
}

type customSetupRequest struct {
	Input string `json:"input" binding:"required"`
}

type choiceRequest struct {
	Choice     string `json:"choice" binding:"required"`
	ChoiceText string `json:"choiceText"`
}

// ExplorerHandler обрабатывает HTTP-запросы к сессиям исследования.
type ExplorerHandler struct {
	service *service.ExplorerService
	logger  *zap.Logger
}

// NewExplorerHandler создает новый ExplorerHandler.
func NewExplorerHandler(s *service.ExplorerService, logger *zap.Logger) *ExplorerHandler {
	return &ExplorerHandler{
		service: s,
		logger:  logger.Named("ExplorerHandler"),
	}
}

// RegisterRoutes регистрирует маршруты сервиса.
func (h *ExplorerHandler) RegisterRoutes(r *gin.Engine) {
	sessions := r.Group("/api/v1/sessions")
	{
		sessions.POST("/:key/start", h.start)
		sessions.POST("/:key/custom", h.customSetup)
		sessions.POST("/:key/choice", h.choice)
		sessions.POST("/:key/reset", h.reset)
		sessions.GET("/:key", h.info)
	}
}

func (h *ExplorerHandler) start(c *gin.Context) {
	key, ok := sessionKey(c)
	if !ok {
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Невалидное тело запроса start", zap.String("sessionKey", key), zap.Error(err))
		c.JSON(http.StatusBadRequest, APIError{Message: "field 'input' is required"})
		return
	}

	reply, err := h.service.Start(c.Request.Context(), key, req.Input)
	if err != nil {
		h.logger.Error("Start завершился с ошибкой", zap.String("sessionKey", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal error"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *ExplorerHandler) customSetup(c *gin.Context) {
	key, ok := sessionKey(c)
	if !ok {
		return
	}

	var req customSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Невалидное тело запроса custom", zap.String("sessionKey", key), zap.Error(err))
		c.JSON(http.StatusBadRequest, APIError{Message: "field 'input' is required"})
		return
	}

	reply, err := h.service.CustomSetup(c.Request.Context(), key, req.Input)
	if err != nil {
		h.logger.Error("CustomSetup завершился с ошибкой", zap.String("sessionKey", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal error"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *ExplorerHandler) choice(c *gin.Context) {
	key, ok := sessionKey(c)
	if !ok {
		return
	}

	var req choiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Невалидное тело запроса choice", zap.String("sessionKey", key), zap.Error(err))
		c.JSON(http.StatusBadRequest, APIError{Message: "field 'choice' is required"})
		return
	}

	reply, err := h.service.Choice(c.Request.Context(), key, req.Choice, req.ChoiceText)
	if err != nil {
		h.logger.Error("Choice завершился с ошибкой", zap.String("sessionKey", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal error"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *ExplorerHandler) reset(c *gin.Context) {
	key, ok := sessionKey(c)
	if !ok {
		return
	}

	reply, err := h.service.Reset(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("Reset завершился с ошибкой", zap.String("sessionKey", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal error"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *ExplorerHandler) info(c *gin.Context) {
	key, ok := sessionKey(c)
	if !ok {
		return
	}

	info, err := h.service.Info(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("Info завершился с ошибкой", zap.String("sessionKey", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal error"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// sessionKey извлекает и проверяет ключ сессии из пути.
func sessionKey(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, APIError{Message: "session key is required"})
		return "", false
	}
	return key, true
}
