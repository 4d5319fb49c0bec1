// Audit listing handler.
//
// This file exposes a read-only, paginated view of the save-action ledger so
// operators can inspect what the bot did (and failed to do) for a given
// workspace/user without querying the database directly.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/savethebeat/savethebeat/internal/domain"
	"github.com/savethebeat/savethebeat/internal/repo"
	"github.com/savethebeat/savethebeat/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListActionsResponse wraps a page of ledger rows and pagination information.
type ListActionsResponse struct {
	Actions    []domain.SaveAction `json:"actions"`
	Pagination Pagination          `json:"pagination"`
}

// ListActions is the GET /api/v1/actions endpoint. It requires workspace and
// user query parameters and supports page / page_size.
func (h *Handlers) ListActions(c *gin.Context) {
	workspaceID := c.Query("workspace")
	userID := c.Query("user")
	if workspaceID == "" || userID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "workspace and user query parameters are required")
		return
	}

	page := utils.AtoiDefault(c.Query("page"), 1)
	pageSize := utils.AtoiDefault(c.Query("page_size"), 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	ctx := c.Request.Context()
	total, err := repo.CountSaveActions(ctx, h.db, workspaceID, userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not count actions")
		return
	}

	rows := []domain.SaveAction{}
	if total > 0 {
		rows, err = repo.ListSaveActionsPage(ctx, h.db, workspaceID, userID, (page-1)*pageSize, pageSize)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list actions")
			return
		}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListActionsResponse{
		Actions: rows,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
