package http

import (
	"net/http"

	"github.com/capsulemail/capsuled/internal/blob"
	"github.com/capsulemail/capsuled/internal/http/middleware"
	"github.com/capsulemail/capsuled/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// deleteCapsuleHandler removes a pending capsule and its blob. The blob
// delete is best-effort: the record delete proceeds even if it fails.
func deleteCapsuleHandler(capsules repository.CapsulesRepository, blobs blob.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		ownerID, ok := middleware.UserIDFromCtx(c)
		if !ok || ownerID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
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
			return c.JSON(http.StatusConflict, map[string]string{"error": "cannot delete a " + capsule.Status.String() + " capsule"})
		}

		if capsule.BodyRef != "" {
			if err := blobs.Delete(ctx, capsule.BodyRef); err != nil {
				log.Warnf("blob delete failed: %v", err)
			}
		}

		applied, err := capsules.DeletePending(ctx, capsule.ID, ownerID)
		if err != nil {
			c.Logger().Errorf("capsule delete failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if !applied {
			return c.JSON(http.StatusConflict, map[string]string{"error": "capsule is no longer pending"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"id":      capsule.ID,
			"message": "time capsule deleted",
		})
	}
}
