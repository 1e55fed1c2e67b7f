package apiv1

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/internal/pkg/entitlements"
	"github.com/everkeep/everkeep/internal/pkg/env"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
	"github.com/everkeep/everkeep/internal/pkg/usercontext"
)

// PostInviteExecutor invites a new executor for the caller. The invite email
// carries a random token the executor accepts with.
func (s *APIServer) PostInviteExecutor(c *fiber.Ctx) error {
	var req struct {
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		AccessLevel string `json:"access_level"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "email required"})
	}
	if req.AccessLevel == "" {
		req.AccessLevel = models.EXECUTOR_ACCESS_VIEWER
	}

	userID := usercontext.GetUserID(c)
	plan := entitlements.NormalizePlan(usercontext.GetPlan(c))

	count, err := s.repos.Executor.CountForUser(userID)
	if err != nil {
		return errorResponse(c, err)
	}
	if !entitlements.CheckLimit(plan, entitlements.DimensionExecutors, int(count)) {
		return errorResponse(c, fmt.Errorf("%w: executor limit reached for %s tier", lifecycle.ErrPermissionDenied, plan))
	}

	if _, err := s.repos.Executor.GetByOwnerAndEmail(userID, req.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Executor with this email already exists"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return errorResponse(c, err)
	}

	executor := &models.Executor{
		UserID:      userID,
		Email:       req.Email,
		Phone:       req.Phone,
		AccessLevel: req.AccessLevel,
		Status:      models.EXECUTOR_STATUS_PENDING,
	}
	if err := executor.GenerateInviteToken(); err != nil {
		return errorResponse(c, err)
	}
	if err := s.repos.Executor.Create(executor); err != nil {
		return errorResponse(c, err)
	}

	// Invitation mail is best-effort; the token can be re-read by the owner.
	inviteURL := fmt.Sprintf("%s/executors/accept?token=%s",
		env.GetEnv("FRONTEND_URL", "https://everkeep.app"), executor.InviteToken)
	body := fmt.Sprintf(
		"<h1>You have been named an executor</h1>"+
			"<p>%s wants you to be an executor of their digital vaults.</p>"+
			"<p><a href=\"%s\">Accept the invitation</a></p>",
		usercontext.GetUsername(c), inviteURL)
	if err := s.mailer.Send(executor.Email, "EverKeep executor invitation", body); err != nil {
		log.Errorf("[API] Failed to send invite mail to %s: %v", executor.Email, err)
	}

	return c.Status(fiber.StatusCreated).JSON(executor)
}

// GetExecutors lists the caller's executors.
func (s *APIServer) GetExecutors(c *fiber.Ctx) error {
	executors, err := s.repos.Executor.ListForUser(usercontext.GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"executors": executors})
}

// PostAcceptInvite accepts an executor invitation. The invite token is the
// credential; no API key is required.
func (s *APIServer) PostAcceptInvite(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "token required"})
	}

	executor, err := s.repos.Executor.GetByInviteToken(req.Token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invalid invite token"})
		}
		return errorResponse(c, err)
	}
	if executor.Status != models.EXECUTOR_STATUS_PENDING {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invalid_state", "message": "Invitation already handled"})
	}

	executor.Accept()
	if err := s.repos.Executor.Update(executor); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(executor)
}

// DeleteExecutor removes one of the caller's executors. Their votes stop
// counting towards consensus immediately.
func (s *APIServer) DeleteExecutor(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid executor id"})
	}

	executor, err := s.repos.Executor.GetOwned(uint(id), usercontext.GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	if err := s.repos.Executor.Remove(executor.ID); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"removed": true})
}

// PostVoteTrigger casts the caller's release vote for a vault they are an
// accepted executor of, and reports the resulting consensus.
func (s *APIServer) PostVoteTrigger(c *fiber.Ctx) error {
	var req struct {
		VaultID string `json:"vault_id"`
		Vote    *bool  `json:"vote"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if req.Vote == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "vote required"})
	}

	vault, err := s.repos.Vault.GetByUUID(req.VaultID)
	if err != nil {
		return errorResponse(c, err)
	}

	record, err := s.consensus.CastVote(vault.ID, usercontext.GetUserEmail(c), *req.Vote)
	if err != nil {
		return errorResponse(c, err)
	}

	decision, err := s.consensus.Evaluate(vault.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"vote":     record,
		"decision": decision,
	})
}
