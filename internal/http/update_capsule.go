package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/capsulemail/capsuled/internal/blob"
	"github.com/capsulemail/capsuled/internal/http/middleware"
	"github.com/capsulemail/capsuled/internal/repository"
	"github.com/capsulemail/capsuled/internal/util"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type updateReq struct {
	Title          *string   `json:"title"`
	Message        *string   `json:"message"`
	RecipientEmail *string   `json:"recipient_email"`
	ScheduledAt    *string   `json:"scheduled_at"`
	Occasion       *string   `json:"occasion"`
	Tags           *[]string `json:"tags"`
}

// updateCapsuleHandler rewrites the provided fields of a pending capsule.
// Terminal capsules are refused; the conditional repository update closes
// the race with a delivery run transitioning the record mid-request.
func updateCapsuleHandler(capsules repository.CapsulesRepository, blobs blob.Store, keyPrefix string, inlineMax int) echo.HandlerFunc {
	return func(c echo.Context) error {
		ownerID, ok := middleware.UserIDFromCtx(c)
		if !ok || ownerID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req updateReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		ctx := c.Request().Context()

		capsule, err := capsules.GetByID(ctx, c.Param("id"), ownerID)
		if err != nil {
			c.Logger().Errorf("get capsule failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		if capsule == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "capsule not found"})
		}
		if capsule.Status.Terminal() {
			return c.JSON(http.StatusConflict, map[string]string{"error": "cannot update a " + capsule.Status.String() + " capsule"})
		}

		if req.Title != nil {
			t := strings.TrimSpace(*req.Title)
			if t == "" {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "title must not be empty"})
			}
			capsule.Title = t
		}
		if req.RecipientEmail != nil {
			recipient, ok := util.NormalizeEmail(*req.RecipientEmail)
			if !ok {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid recipient email address"})
			}
			capsule.RecipientEmail = recipient
		}
		if req.ScheduledAt != nil {
			scheduledAt, err := time.Parse(time.RFC3339, *req.ScheduledAt)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid date format, use ISO 8601"})
			}
			if !scheduledAt.After(time.Now()) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "scheduled date must be in the future"})
			}
			capsule.ScheduledAt = scheduledAt.UTC()
		}
		if req.Occasion != nil {
			capsule.Occasion = strings.TrimSpace(*req.Occasion)
		}
		if req.Tags != nil {
			capsule.Tags = strings.Join(*req.Tags, ",")
		}

		if req.Message != nil {
			msg := *req.Message
			if len(msg) > inlineMax {
				key := capsule.BodyRef
				if key == "" {
					key = blob.Key(keyPrefix, ownerID, capsule.ID)
				}
				if err := blobs.Put(ctx, key, []byte(msg)); err != nil {
					log.Errorf("blob put failed: %v", err)
					return c.JSON(http.StatusInternalServerError, map[string]string{"error": "storage error"})
				}
				capsule.BodyRef = key
				capsule.BodyInline = ""
			} else {
				if capsule.BodyRef != "" {
					if err := blobs.Delete(ctx, capsule.BodyRef); err != nil {
						log.Warnf("blob delete failed: %v", err)
					}
					capsule.BodyRef = ""
				}
				capsule.BodyInline = msg
			}
		}

		applied, err := capsules.UpdatePending(ctx, *capsule)
		if err != nil {
			c.Logger().Errorf("capsule update failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if !applied {
			// delivered or failed between our read and the write
			return c.JSON(http.StatusConflict, map[string]string{"error": "capsule is no longer pending"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"id":      capsule.ID,
			"message": "time capsule updated",
		})
	}
}
