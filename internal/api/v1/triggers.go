package apiv1

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/everkeep/everkeep/internal/pkg/entitlements"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
	"github.com/everkeep/everkeep/internal/pkg/usercontext"
)

const historyLimit = 50

// PostProofOfLife records today's check-in for the authenticated user.
func (s *APIServer) PostProofOfLife(c *fiber.Ctx) error {
	result, err := s.ledger.CheckIn(usercontext.GetUserID(c))
	if err != nil {
		log.Errorf("[API] Check-in failed: %v", err)
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// GetTriggerStatus returns the user's activity standing: streak, last
// check-in, days since activity and the currently armed triggers.
func (s *APIServer) GetTriggerStatus(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	user, err := s.repos.User.GetByID(userID)
	if err != nil {
		return errorResponse(c, err)
	}

	streak, lastCheckIn, err := s.ledger.CurrentStreak(userID)
	if err != nil {
		return errorResponse(c, err)
	}

	daysSinceActivity := 0
	if user.LastActivityAt != nil {
		daysSinceActivity = lifecycle.DaysSince(*user.LastActivityAt, time.Now())
	}

	active, err := s.repos.Trigger.ListActiveForUser(userID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"streak_count":        streak,
		"last_check_in":       lastCheckIn,
		"last_activity_at":    user.LastActivityAt,
		"days_since_activity": daysSinceActivity,
		"active_triggers":     active,
	})
}

// PostManualTrigger arms a manual release for one of the caller's vaults. It
// stays cancellable for 72 hours.
func (s *APIServer) PostManualTrigger(c *fiber.Ctx) error {
	var req struct {
		VaultID string `json:"vault_id"`
		Reason  string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	plan := entitlements.NormalizePlan(usercontext.GetPlan(c))
	trigger, err := s.lifecycle.CreateManualTrigger(usercontext.GetUserID(c), req.VaultID, req.Reason, plan)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(trigger)
}

// PostCancelTrigger aborts one of the caller's triggers while it is still
// cancellable.
func (s *APIServer) PostCancelTrigger(c *fiber.Ctx) error {
	var req struct {
		TriggerID uint `json:"trigger_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	trigger, err := s.lifecycle.Cancel(usercontext.GetUserID(c), req.TriggerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(trigger)
}

// GetTriggerHistory returns the caller's most recent triggers, newest first.
func (s *APIServer) GetTriggerHistory(c *fiber.Ctx) error {
	history, err := s.repos.Trigger.ListHistoryForUser(usercontext.GetUserID(c), historyLimit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"triggers": history})
}
