package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/obrastock-api/internal/application/auth"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC    *auth.AuthUseCase
	Sessions  *SessionManager
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Projects (protegido)
	projects := protected.Group("/projects")
	projectHandler := NewProjectHandler(deps.Sessions)
	projects.Get("/", projectHandler.List)
	projects.Post("/", projectHandler.Create)
	projects.Get("/current", projectHandler.Current)
	projects.Put("/:id", projectHandler.Update)
	projects.Delete("/:id", projectHandler.Delete)
	projects.Post("/:id/select", projectHandler.Select)

	// Materials del proyecto activo (protegido)
	materials := protected.Group("/materials")
	materialHandler := NewMaterialHandler(deps.Sessions)
	fileHandler := NewFileHandler(deps.Sessions)
	materials.Get("/", materialHandler.List)
	materials.Post("/", materialHandler.Create)
	materials.Post("/import", fileHandler.Import)
	materials.Get("/export", fileHandler.Export)
	materials.Put("/editing", materialHandler.SetEditing)
	materials.Put("/:id", materialHandler.Update)
	materials.Delete("/:id", materialHandler.Delete)
	materials.Post("/:id/quantity", materialHandler.AdjustQuantity)
}
