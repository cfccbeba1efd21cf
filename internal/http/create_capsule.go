package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/capsulemail/capsuled/internal/blob"
	"github.com/capsulemail/capsuled/internal/http/middleware"
	"github.com/capsulemail/capsuled/internal/model"
	"github.com/capsulemail/capsuled/internal/repository"
	"github.com/capsulemail/capsuled/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type createReq struct {
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	RecipientEmail string   `json:"recipient_email"`
	ScheduledAt    string   `json:"scheduled_at"` // RFC 3339
	Occasion       string   `json:"occasion"`
	Tags           []string `json:"tags"`
}

func createCapsuleHandler(capsules repository.CapsulesRepository, blobs blob.Store, keyPrefix string, inlineMax int) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing required field: title"})
		}

		recipient, ok := util.NormalizeEmail(req.RecipientEmail)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid recipient email address"})
		}

		scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid date format, use ISO 8601"})
		}
		if !scheduledAt.After(time.Now()) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "scheduled date must be in the future"})
		}

		ownerID, ok := middleware.UserIDFromCtx(c)
		if !ok || ownerID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		capsule := model.Capsule{
			ID:             util.NewID(),
			OwnerID:        ownerID,
			Title:          req.Title,
			Occasion:       strings.TrimSpace(req.Occasion),
			Tags:           strings.Join(req.Tags, ","),
			RecipientEmail: recipient,
			ScheduledAt:    scheduledAt.UTC(),
			Status:         model.StatusPending,
		}

		// Large bodies go to the blob store; small ones stay on the record.
		if len(req.Message) > inlineMax {
			key := blob.Key(keyPrefix, ownerID, capsule.ID)
			if err := blobs.Put(c.Request().Context(), key, []byte(req.Message)); err != nil {
				log.Errorf("blob put failed: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
			}
			capsule.BodyRef = key
		} else {
			capsule.BodyInline = req.Message
		}

		if err := capsules.Insert(c.Request().Context(), capsule); err != nil {
			log.Errorf("capsule insert failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"id":           capsule.ID,
			"message":      "time capsule created",
			"scheduled_at": capsule.ScheduledAt.Format(time.RFC3339),
		})
	}
}
