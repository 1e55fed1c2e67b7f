package apiv1

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/internal/pkg/entitlements"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
	"github.com/everkeep/everkeep/internal/pkg/usercontext"
)

// PostVault creates a vault and arms its trigger. Vault count, encryption and
// trigger type are all gated by the caller's subscription tier.
func (s *APIServer) PostVault(c *fiber.Ctx) error {
	var req struct {
		Name           string `json:"name"`
		Description    string `json:"description"`
		Icon           string `json:"icon"`
		TriggerType    string `json:"trigger_type"`
		InactivityDays int    `json:"inactivity_days"`
		ScheduledDate  string `json:"scheduled_date"`
		IsEncrypted    bool   `json:"is_encrypted"`
		IsPublic       bool   `json:"is_public"`
		CustomSlug     string `json:"custom_slug"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	userID := usercontext.GetUserID(c)
	plan := entitlements.NormalizePlan(usercontext.GetPlan(c))

	count, err := s.repos.Vault.CountByUserID(userID)
	if err != nil {
		return errorResponse(c, err)
	}
	if !entitlements.CheckLimit(plan, entitlements.DimensionVaults, int(count)) {
		return errorResponse(c, fmt.Errorf("%w: vault limit reached for %s tier", lifecycle.ErrPermissionDenied, plan))
	}
	if req.IsEncrypted && !entitlements.EncryptionAllowed(plan) {
		return errorResponse(c, fmt.Errorf("%w: encryption not available on %s tier", lifecycle.ErrPermissionDenied, plan))
	}

	cfg := lifecycle.TriggerConfig{InactivityDays: req.InactivityDays}
	if req.ScheduledDate != "" {
		date, err := time.Parse(time.RFC3339, req.ScheduledDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "scheduled_date must be RFC 3339"})
		}
		cfg.ScheduledDate = &date
	}

	// Gate the trigger before persisting anything, so a rejected trigger
	// type does not leave a triggerless vault counting against the limit.
	if err := lifecycle.ValidateTriggerConfig(req.TriggerType, plan, cfg); err != nil {
		return errorResponse(c, err)
	}

	vault := &models.Vault{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		TriggerType: req.TriggerType,
		IsEncrypted: req.IsEncrypted,
		IsPublic:    req.IsPublic,
		CustomSlug:  req.CustomSlug,
	}
	if err := vault.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": err.Error()})
	}
	if err := s.repos.Vault.Create(vault); err != nil {
		return errorResponse(c, err)
	}

	trigger, err := s.lifecycle.ArmVaultTrigger(vault, plan, cfg)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"vault":   vault,
		"trigger": trigger,
	})
}

// GetVaults lists the caller's vaults.
func (s *APIServer) GetVaults(c *fiber.Ctx) error {
	vaults, err := s.repos.Vault.ListByUserID(usercontext.GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"vaults": vaults})
}

// GetVault returns one of the caller's vaults by UUID. Vaults belonging to
// other users are indistinguishable from missing ones.
func (s *APIServer) GetVault(c *fiber.Ctx) error {
	vault, err := s.repos.Vault.GetByUUIDOwned(c.Params("uuid"), usercontext.GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(vault)
}

// PostAssignExecutor assigns one of the caller's accepted executors to the
// vault, entitling them to receive releases and cast votes for it.
func (s *APIServer) PostAssignExecutor(c *fiber.Ctx) error {
	var req struct {
		ExecutorID uint `json:"executor_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	userID := usercontext.GetUserID(c)
	vault, err := s.repos.Vault.GetByUUIDOwned(c.Params("uuid"), userID)
	if err != nil {
		return errorResponse(c, err)
	}
	executor, err := s.repos.Executor.GetOwned(req.ExecutorID, userID)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := s.repos.Executor.AssignToVault(vault.ID, executor.ID); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"vault_id":    vault.ID,
		"executor_id": executor.ID,
	})
}
