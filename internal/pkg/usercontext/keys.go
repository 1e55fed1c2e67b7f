package usercontext

// Shared Locals keys used across handlers and middlewares
const (
	KeyUserID        = "user_id"
	KeyUserEmail     = "user_email"
	KeyFromProtected = "from_protected"
)
