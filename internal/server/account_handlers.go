package server

import (
	"fmt"

	"plantspack/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ExportAccount handles GET /api/account/export
// @Summary Download my data
// @Tags account
// @Produce json
// @Produce application/yaml
// @Param format query string false "json (default) or yaml"
// @Success 200 {object} service.AccountExport
// @Router /account/export [get]
func (s *Server) ExportAccount(c *fiber.Ctx) error {
	export, err := s.accountService.Export(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	format := c.Query("format", "json")
	body, contentType, err := service.Render(export, format)
	if err != nil {
		return mapServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="plantspack-export.%s"`, format))
	return c.Send(body)
}

// DeleteAccount handles DELETE /api/account
// @Summary Delete my account
// @Description Soft-deletes content and anonymizes the profile. Requires {"confirm":"DELETE"}.
// @Tags account
// @Accept json
// @Param request body object{confirm=string} true "Confirmation"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /account [delete]
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	var req struct {
		Confirm string `json:"confirm"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.accountService.DeleteAccount(c.UserContext(), currentUserID(c), req.Confirm); err != nil {
		return mapServiceError(c, err)
	}

	if claims, err := s.session(c); err == nil {
		_ = s.revoke(c.UserContext(), claims)
	}
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "Account deleted"})
}
