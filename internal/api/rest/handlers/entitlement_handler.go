package handlers

import (
	"net/http"

	"github.com/Dhoini/Entitlement-service/internal/service"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// EntitlementHandler обработчик запросов premium-права
type EntitlementHandler struct {
	service       service.EntitlementService
	defaultUserID string
	log           *logger.Logger
}

// NewEntitlementHandler создает новый обработчик запросов entitlement
func NewEntitlementHandler(svc service.EntitlementService, defaultUserID string, log *logger.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		service:       svc,
		defaultUserID: defaultUserID,
		log:           log,
	}
}

// GetEntitlement возвращает premium-право пользователя.
// Без user_id используется пользователь по умолчанию (single-tenant
// деплой). Ошибок наружу нет: все отказы деградируют в false.
func (h *EntitlementHandler) GetEntitlement(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		userID = h.defaultUserID
	}

	isPremium := h.service.IsPremium(c.Request.Context(), userID)

	c.JSON(http.StatusOK, gin.H{"is_premium": isPremium})
}
