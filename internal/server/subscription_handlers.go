package server

import (
	"github.com/gofiber/fiber/v2"
)

// BillingSignatureHeader carries "t=<unix>,v1=<hex hmac>" on webhook deliveries.
const BillingSignatureHeader = "X-Billing-Signature"

// GetMySubscription handles GET /api/subscription/me
// @Summary My subscription
// @Tags subscription
// @Produce json
// @Success 200 {object} models.Subscription
// @Router /subscription/me [get]
func (s *Server) GetMySubscription(c *fiber.Ctx) error {
	sub, err := s.subscriptionService.Get(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(sub)
}

// BillingWebhook handles POST /api/billing/webhook
// @Summary Billing provider webhook
// @Description Verifies the HMAC signature, then applies subscription.updated or subscription.canceled. Redeliveries are acknowledged without being applied again.
// @Tags subscription
// @Accept json
// @Produce json
// @Param X-Billing-Signature header string true "t=<unix>,v1=<hex>"
// @Success 200 {object} service.WebhookResult
// @Failure 401 {object} models.ErrorResponse
// @Router /billing/webhook [post]
func (s *Server) BillingWebhook(c *fiber.Ctx) error {
	result, err := s.subscriptionService.HandleWebhook(c.UserContext(), c.Get(BillingSignatureHeader), c.Body())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(result)
}
