package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/handler/middleware"
)

type Handlers struct {
	Auth     *AuthHandler
	Password *PasswordHandler
	Invite   *InviteHandler
	User     *UserHandler
	Session  *SessionHandler
	Activity *ActivityHandler
	Project  *ProjectHandler
	Document *DocumentHandler
	Chat     *ChatHandler
	Health   *HealthHandler
}

// SetupRoutes registers every route. Resource routes go through the gate;
// authLimiter guards the public credential endpoints.
func SetupRoutes(app *fiber.App, h Handlers, gate *middleware.Gate, authLimiter fiber.Handler, metrics *middleware.Metrics) {
	const (
		employee = domain.RoleEmployee
		manager  = domain.RoleManager
		admin    = domain.RoleAdmin
	)

	// Health checks (public)
	app.Get("/health", h.Health.Health)
	app.Get("/ready", h.Health.Ready)
	if metrics != nil {
		app.Get("/metrics", metrics.Handler())
	}

	api := app.Group("/api/v1")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/login", authLimiter, h.Auth.Login)
	auth.Post("/register", authLimiter, h.Invite.Register)
	auth.Get("/invites/:token", authLimiter, h.Invite.Validate)
	auth.Post("/password/forgot", authLimiter, h.Password.ForgotPassword)
	auth.Post("/password/reset", authLimiter, h.Password.ResetPassword)

	// Auth routes (signed in)
	auth.Get("/me", gate.Require(employee, h.Auth.Me))
	auth.Post("/logout", gate.Require(employee, h.Auth.Logout))
	auth.Post("/logout-all", gate.Require(employee, h.Auth.LogoutAll))
	auth.Put("/password", gate.Require(employee, h.Password.ChangePassword))
	auth.Post("/2fa/enroll", gate.Require(employee, h.Auth.EnrollTwoFactor))
	auth.Post("/2fa/confirm", gate.Require(employee, h.Auth.ConfirmTwoFactor))
	auth.Post("/2fa/disable", gate.Require(employee, h.Auth.DisableTwoFactor))

	sessions := api.Group("/sessions")
	sessions.Get("/", gate.Require(employee, h.Session.List))
	sessions.Delete("/", gate.Require(employee, h.Session.RevokeAll))
	sessions.Delete("/:id", gate.Require(employee, h.Session.Revoke))

	projects := api.Group("/projects")
	projects.Get("/", gate.Require(employee, h.Project.List))
	projects.Post("/", gate.Require(manager, h.Project.Create))
	projects.Get("/:id", gate.Require(employee, h.Project.Get))
	projects.Put("/:id", gate.Require(manager, h.Project.Update))
	projects.Post("/:id/archive", gate.Require(manager, h.Project.Archive))
	projects.Delete("/:id", gate.Require(admin, h.Project.Delete))
	projects.Get("/:id/members", gate.Require(employee, h.Project.Members))
	projects.Post("/:id/members", gate.Require(manager, h.Project.AddMember))
	projects.Delete("/:id/members/:userId", gate.Require(manager, h.Project.RemoveMember))

	documents := api.Group("/documents")
	documents.Get("/", gate.Require(employee, h.Document.List))
	documents.Post("/", gate.Require(employee, h.Document.Create))
	documents.Get("/:id", gate.Require(employee, h.Document.Get))
	documents.Put("/:id", gate.Require(employee, h.Document.Update))
	documents.Post("/:id/archive", gate.Require(manager, h.Document.Archive))
	documents.Delete("/:id", gate.Require(admin, h.Document.Delete))
	documents.Get("/:id/download-url", gate.Require(employee, h.Document.DownloadURL))

	api.Post("/storage/upload-url", gate.Require(employee, h.Document.UploadURL))

	chat := api.Group("/chat/conversations")
	chat.Get("/", gate.Require(employee, h.Chat.List))
	chat.Post("/", gate.Require(employee, h.Chat.Create))
	chat.Get("/:id", gate.Require(employee, h.Chat.Get))
	chat.Delete("/:id", gate.Require(employee, h.Chat.Delete))
	chat.Post("/:id/messages", gate.Require(employee, h.Chat.Send))

	api.Get("/activities", gate.Require(employee, h.Activity.Mine))

	// Admin routes
	adminGroup := api.Group("/admin")
	adminGroup.Get("/activities", gate.Require(admin, h.Activity.All))
	adminGroup.Get("/users", gate.Require(admin, h.User.List))
	adminGroup.Put("/users/:id/role", gate.Require(admin, h.User.ChangeRole))
	adminGroup.Delete("/users/:id", gate.Require(admin, h.User.Disable))
	adminGroup.Post("/invites", gate.Require(admin, h.Invite.Create))
	adminGroup.Get("/invites", gate.Require(admin, h.Invite.List))
}
