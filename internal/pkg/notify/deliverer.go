package notify

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/everkeep/everkeep/app/models"
	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/database"
	"github.com/everkeep/everkeep/internal/pkg/env"
	"github.com/everkeep/everkeep/internal/pkg/mail"
)

// MailDeliverer turns intents into emails and persisted notification
// records.
type MailDeliverer struct {
	sender mail.Sender
}

// NewMailDeliverer creates a deliverer using the given mail sender.
func NewMailDeliverer(sender mail.Sender) *MailDeliverer {
	return &MailDeliverer{sender: sender}
}

// Deliver dispatches an intent by type.
func (d *MailDeliverer) Deliver(ctx context.Context, intent *Intent) error {
	switch intent.Type {
	case IntentTypeRelease:
		payload, err := ReleasePayloadFromMap(intent.Payload)
		if err != nil {
			return fmt.Errorf("invalid release payload: %w", err)
		}
		return d.deliverRelease(payload)
	case IntentTypeReminder:
		payload, err := ReminderPayloadFromMap(intent.Payload)
		if err != nil {
			return fmt.Errorf("invalid reminder payload: %w", err)
		}
		return d.deliverReminder(payload)
	default:
		return fmt.Errorf("unknown intent type: %s", intent.Type)
	}
}

// deliverRelease notifies every accepted executor of the vault that its
// content has been released, and records the release for the owner.
func (d *MailDeliverer) deliverRelease(payload *ReleasePayload) error {
	executors, err := repository.GetGlobalRepositories().Executor.ListAcceptedForVault(payload.VaultID)
	if err != nil {
		return fmt.Errorf("failed to load executors for vault %d: %w", payload.VaultID, err)
	}

	subject := fmt.Sprintf("Vault %q has been released", payload.VaultName)
	body := fmt.Sprintf(
		"<h1>Vault Released</h1>"+
			"<p>The vault %q you were named executor for has been released.</p>"+
			"<p><a href=\"%s\">Open EverKeep</a></p>",
		payload.VaultName, env.GetEnv("FRONTEND_URL", "https://everkeep.app"))

	var firstErr error
	for _, executor := range executors {
		if err := d.sender.Send(executor.Email, subject, body); err != nil {
			log.Errorf("[Notify] Release mail to %s failed: %v", executor.Email, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	// Public vaults get their memorial page published on release.
	if vault, err := repository.GetGlobalRepositories().Vault.GetByID(payload.VaultID); err == nil && vault.IsPublic {
		if _, err := models.EnsureMemorial(database.GetDB(), vault.ID); err != nil {
			log.Errorf("[Notify] Failed to publish memorial for vault %d: %v", vault.ID, err)
		}
	}

	content := fmt.Sprintf("Vault %q released to %d executor(s)", payload.VaultName, len(executors))
	if err := models.CreateNotification(database.GetDB(), payload.UserID, models.NOTIFICATION_TYPE_RELEASE, content, payload.TriggerID); err != nil {
		log.Errorf("[Notify] Failed to record release notification: %v", err)
	}

	return firstErr
}

// deliverReminder mails a proof-of-life reminder and records it.
func (d *MailDeliverer) deliverReminder(payload *ReminderPayload) error {
	subject := fmt.Sprintf("Haven't seen you in %d days", payload.DaysInactive)
	body := fmt.Sprintf(
		"<h1>Proof of Life Reminder</h1>"+
			"<p>You haven't checked in for %d days.</p>"+
			"<p>Your executors will be notified if you don't check in soon.</p>"+
			"<p><a href=\"%s\">Check in now</a></p>",
		payload.DaysInactive, env.GetEnv("FRONTEND_URL", "https://everkeep.app"))

	if err := d.sender.Send(payload.Email, subject, body); err != nil {
		return err
	}

	content := fmt.Sprintf("Proof-of-life reminder sent after %d days of inactivity", payload.DaysInactive)
	if err := models.CreateNotification(database.GetDB(), payload.UserID, models.NOTIFICATION_TYPE_REMINDER, content, 0); err != nil {
		log.Errorf("[Notify] Failed to record reminder notification: %v", err)
	}
	return nil
}
