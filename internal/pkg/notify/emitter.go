package notify

// Emitter is what the trigger monitor emits its side effects through. The
// monitor never blocks on delivery; implementations queue and return.
type Emitter interface {
	EmitRelease(payload ReleasePayload) error
	EmitReminder(payload ReminderPayload) error
}
