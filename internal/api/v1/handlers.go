package apiv1

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/consensus"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
	"github.com/everkeep/everkeep/internal/pkg/mail"
	"github.com/everkeep/everkeep/internal/pkg/middleware"
	"github.com/everkeep/everkeep/internal/pkg/proofoflife"
)

// APIServer holds the domain services behind the v1 HTTP surface.
type APIServer struct {
	repos     *repository.Repositories
	lifecycle *lifecycle.Service
	ledger    *proofoflife.Ledger
	consensus *consensus.Service
	mailer    mail.Sender
}

// NewAPIServer creates a new API server instance over the global repositories.
func NewAPIServer() *APIServer {
	repos := repository.GetGlobalRepositories()
	return &APIServer{
		repos:     repos,
		lifecycle: lifecycle.NewService(repos.Trigger, repos.Vault),
		ledger:    proofoflife.NewLedger(repos.ProofOfLife, repos.User),
		consensus: consensus.NewService(repos.Executor),
		mailer:    mail.NewSenderFromEnv(),
	}
}

// RegisterHandlers attaches all v1 routes to the given router. Memorial
// pages, invite acceptance and auth are public; everything else requires an
// API key.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)
	router.Get("/memorial/:uuid", s.GetMemorial)
	router.Post("/auth/register", s.PostRegister)
	router.Post("/auth/login", s.PostLogin)
	router.Post("/executors/accept", s.PostAcceptInvite)

	apiKey := middleware.APIKeyAuthMiddleware()

	triggers := router.Group("/triggers", apiKey)
	triggers.Post("/proof-of-life", s.PostProofOfLife)
	triggers.Get("/status", s.GetTriggerStatus)
	triggers.Post("/manual", s.PostManualTrigger)
	triggers.Post("/cancel", s.PostCancelTrigger)
	triggers.Get("/history", s.GetTriggerHistory)

	vaults := router.Group("/vaults", apiKey)
	vaults.Post("/", s.PostVault)
	vaults.Get("/", s.GetVaults)
	vaults.Get("/:uuid", s.GetVault)
	vaults.Post("/:uuid/executors", s.PostAssignExecutor)

	executors := router.Group("/executors", apiKey)
	executors.Post("/invite", s.PostInviteExecutor)
	executors.Get("/", s.GetExecutors)
	executors.Delete("/:id", s.DeleteExecutor)
	executors.Post("/vote-trigger", s.PostVoteTrigger)
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ping": "pong",
	})
}

// errorResponse maps domain errors onto JSON error responses.
func errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Resource not found"})
	case errors.Is(err, lifecycle.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, lifecycle.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": err.Error()})
	case errors.Is(err, lifecycle.ErrWindowExpired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "window_expired", "message": err.Error()})
	case errors.Is(err, lifecycle.ErrPermissionDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "permission_denied", "message": err.Error()})
	case errors.Is(err, lifecycle.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invalid_state", "message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Something went wrong"})
	}
}
