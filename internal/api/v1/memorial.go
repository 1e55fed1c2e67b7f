package apiv1

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/internal/pkg/database"
	"github.com/everkeep/everkeep/internal/pkg/metrics/counter"
)

// GetMemorial serves the public memorial record of a released vault. No
// authentication; vaults without a published memorial are simply not found.
func (s *APIServer) GetMemorial(c *fiber.Ctx) error {
	vault, err := s.repos.Vault.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Memorial not found"})
		}
		return errorResponse(c, err)
	}

	db := database.GetDB()
	var memorial models.Memorial
	if err := db.Where("vault_id = ?", vault.ID).First(&memorial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Memorial not found"})
		}
		return errorResponse(c, err)
	}

	// Views are buffered in Redis and flushed to the DB in batches.
	if err := counter.AddMemorialView(memorial.ID); err != nil {
		log.Errorf("[API] Failed to count memorial view for vault %d: %v", vault.ID, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"name":         vault.Name,
		"description":  vault.Description,
		"icon":         vault.Icon,
		"views":        memorial.Views,
		"published_at": memorial.PublishedAt,
	})
}
