package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/internal/service"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
	"github.com/Dhoini/Entitlement-service/pkg/req"
	"github.com/gin-gonic/gin"
)

// CheckoutRequest тело запроса инициации покупки или открытия портала
type CheckoutRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// CheckoutHandler обработчик инициации покупки и billing-портала
type CheckoutHandler struct {
	service service.CheckoutService
	log     *logger.Logger
}

// NewCheckoutHandler создает новый обработчик инициации покупки
func NewCheckoutHandler(svc service.CheckoutService, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		log:     log,
	}
}

// CreateCheckoutSession создает checkout-сессию и возвращает redirect URL
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	body, err := req.HandleBody[CheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	url, err := h.service.StartCheckout(c.Request.Context(), body.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrMissingIdentifier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}
		h.log.Error("Failed to start checkout for user %s: %v", body.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreatePortalSession возвращает URL billing-портала пользователя
func (h *CheckoutHandler) CreatePortalSession(c *gin.Context) {
	body, err := req.HandleBody[CheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	url, err := h.service.PortalURL(c.Request.Context(), body.UserID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingIdentifier):
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		case errors.Is(err, domain.ErrNoBillingAccount):
			c.JSON(http.StatusNotFound, gin.H{"error": "No subscription found for this user"})
		default:
			h.log.Error("Failed to create portal session for user %s: %v", body.UserID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open billing portal"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
