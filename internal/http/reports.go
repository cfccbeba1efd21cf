package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/capsulemail/capsuled/internal/http/middleware"
	"github.com/capsulemail/capsuled/internal/model"
	"github.com/capsulemail/capsuled/internal/repository"
	echo "github.com/labstack/echo/v4"
)

type deliveryView struct {
	CapsuleID string `json:"capsule_id"`
	Recipient string `json:"recipient"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	RunAt     string `json:"run_at"`
}

func listDeliveriesHandler(dlog repository.DeliveryLogRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		ownerID, ok := middleware.UserIDFromCtx(c)
		if !ok || ownerID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var outcome model.DeliveryOutcome
		if raw := strings.TrimSpace(c.QueryParam("outcome")); raw != "" {
			tmp := model.DeliveryOutcome(raw)
			if tmp.Valid() {
				outcome = tmp
			}
		}

		recs, err := dlog.ListByOwner(c.Request().Context(), ownerID, outcome, limit, offset)
		if err != nil {
			c.Logger().Errorf("delivery log list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		views := make([]deliveryView, 0, len(recs))
		for _, rec := range recs {
			views = append(views, deliveryView{
				CapsuleID: rec.CapsuleID,
				Recipient: rec.Recipient,
				Outcome:   rec.Outcome.String(),
				Error:     rec.Error,
				RunAt:     rec.RunAt.UTC().Format(time.RFC3339),
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(views),
			"results": views,
		})
	}
}
