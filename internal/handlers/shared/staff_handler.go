package handlers

import (
	"safelink/internal/services"
	"safelink/internal/utils"

	"github.com/gin-gonic/gin"
)

type StaffHandler struct {
	rosterService services.RosterService
}

func NewStaffHandler(rosterService services.RosterService) *StaffHandler {
	return &StaffHandler{
		rosterService: rosterService,
	}
}

// ListStaff returns the responder roster, paginated
func (h *StaffHandler) ListStaff(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	members, total, err := h.rosterService.ListStaff(c.Request.Context(), params)
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponseWithMeta(c, "Staff retrieved", members, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}
