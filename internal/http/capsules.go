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

const previewMax = 100

type capsuleView struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Occasion       string   `json:"occasion,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	RecipientEmail string   `json:"recipient_email"`
	ScheduledAt    string   `json:"scheduled_at"`
	Status         string   `json:"status"`
	MessagePreview string   `json:"message_preview,omitempty"`
	DeliveredAt    string   `json:"delivered_at,omitempty"`
	ErrorMessage   string   `json:"error_message,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

func viewOf(c model.Capsule) capsuleView {
	v := capsuleView{
		ID:             c.ID,
		Title:          c.Title,
		Occasion:       c.Occasion,
		RecipientEmail: c.RecipientEmail,
		ScheduledAt:    c.ScheduledAt.UTC().Format(time.RFC3339),
		Status:         c.Status.String(),
		CreatedAt:      c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.Tags != "" {
		v.Tags = strings.Split(c.Tags, ",")
	}
	if c.DeliveredAt.Valid {
		v.DeliveredAt = c.DeliveredAt.Time.UTC().Format(time.RFC3339)
	}
	if c.ErrorMessage.Valid {
		v.ErrorMessage = c.ErrorMessage.String
	}

	switch {
	case c.BodyInline != "":
		if len(c.BodyInline) > previewMax {
			v.MessagePreview = c.BodyInline[:previewMax] + "..."
		} else {
			v.MessagePreview = c.BodyInline
		}
	case c.BodyRef != "":
		v.MessagePreview = "Message stored as attachment"
	}

	return v
}

func listCapsulesHandler(capsules repository.CapsulesRepository) echo.HandlerFunc {
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

		var st model.CapsuleStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			if tmp, ok := model.ParseCapsuleStatus(raw); ok {
				st = tmp
			}
		}

		rows, err := capsules.ListByOwner(c.Request().Context(), ownerID, st, limit, offset)
		if err != nil {
			c.Logger().Errorf("list capsules failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		views := make([]capsuleView, 0, len(rows))
		for _, row := range rows {
			views = append(views, viewOf(row))
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":    limit,
			"offset":   offset,
			"count":    len(views),
			"capsules": views,
		})
	}
}

func getCapsuleHandler(capsules repository.CapsulesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		ownerID, ok := middleware.UserIDFromCtx(c)
		if !ok || ownerID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		capsule, err := capsules.GetByID(c.Request().Context(), c.Param("id"), ownerID)
		if err != nil {
			c.Logger().Errorf("get capsule failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		if capsule == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "capsule not found"})
		}

		return c.JSON(http.StatusOK, viewOf(*capsule))
	}
}
