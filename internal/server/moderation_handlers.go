package server

import (
	"plantspack/internal/models"
	"plantspack/internal/repository"
	"plantspack/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateReport handles POST /api/reports
// @Summary Report content or a user
// @Tags moderation
// @Accept json
// @Produce json
// @Param request body object{target_type=string,target_id=int,reason=string,details=string} true "Report"
// @Success 201 {object} models.ModerationReport
// @Failure 409 {object} models.ErrorResponse
// @Router /reports [post]
func (s *Server) CreateReport(c *fiber.Ctx) error {
	var req struct {
		TargetType string              `json:"target_type"`
		TargetID   uint                `json:"target_id"`
		Reason     models.ReportReason `json:"reason"`
		Details    string              `json:"details"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	report, err := s.moderationService.CreateReport(c.UserContext(), service.CreateReportInput{
		ReporterID: currentUserID(c),
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
		Details:    req.Details,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetAdminReports handles GET /api/admin/reports
// @Summary Report queue
// @Tags admin
// @Produce json
// @Param status query string false "open, resolved or dismissed"
// @Param target_type query string false "post, comment, user or place"
// @Success 200 {object} object{reports=[]models.ModerationReport,total=int}
// @Router /admin/reports [get]
func (s *Server) GetAdminReports(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	reports, total, err := s.moderationService.ListReports(c.UserContext(), repository.ReportFilter{
		Status:     models.ReportStatus(c.Query("status")),
		TargetType: c.Query("target_type"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"reports": reports, "total": total})
}

// ResolveAdminReport handles POST /api/admin/reports/:id/resolve
// @Summary Resolve or dismiss a report
// @Description action none, delete_content or ban_user is applied with the resolution
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param request body object{status=string,resolution_note=string,action=string} true "Resolution"
// @Success 200 {object} models.ModerationReport
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/reports/{id}/resolve [post]
func (s *Server) ResolveAdminReport(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Status         models.ReportStatus     `json:"status"`
		ResolutionNote string                  `json:"resolution_note"`
		Action         models.ModerationAction `json:"action"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	report, err := s.moderationService.ResolveReport(c.UserContext(), service.ResolveReportInput{
		AdminID:        currentUserID(c),
		ReportID:       id,
		Status:         req.Status,
		Action:         req.Action,
		ResolutionNote: req.ResolutionNote,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(report)
}

// GetAdminBanRequests handles GET /api/admin/ban-requests
// @Summary Users with open reports against them
// @Tags admin
// @Produce json
// @Success 200 {array} service.BanRequestRow
// @Router /admin/ban-requests [get]
func (s *Server) GetAdminBanRequests(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	rows, err := s.moderationService.GetAdminBanRequests(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(rows)
}
