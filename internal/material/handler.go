package material

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/user"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/materials", h.getMaterials)
	// register before :id so the literal segment wins
	app.Get("/api/v1/materials/categories", h.getCategories)
	app.Get("/api/v1/materials/:id<int>", h.getMaterial)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	supplierOnly := user.RequireRole(user.RoleSupplier)
	app.Post("/api/v1/materials", supplierOnly, h.createMaterial)
	app.Put("/api/v1/materials/:id<int>", supplierOnly, h.updateMaterial)
	app.Patch("/api/v1/materials/:id<int>/availability", supplierOnly, h.setAvailability)
	app.Delete("/api/v1/materials/:id<int>", supplierOnly, h.deleteMaterial)
}

func (h *Handler) getMaterials(c *fiber.Ctx) error {
	filter := Filter{
		Category: Category(c.Query("category")),
		City:     c.Query("city"),
		Search:   c.Query("search"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", defaultPageSize),
	}
	if v := c.Query("supplierId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "supplierId must be a number"})
		}
		filter.SupplierID = id
	}

	// only available materials unless the caller asks otherwise
	switch c.Query("available", "true") {
	case "all":
	case "false":
		f := false
		filter.Available = &f
	default:
		t := true
		filter.Available = &t
	}

	materials, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(materials)
}

func (h *Handler) getCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"categories": Categories, "units": Units})
}

func (h *Handler) getMaterial(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	m, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(m)
}

func (h *Handler) createMaterial(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}

	in := new(Input)
	if err := c.BodyParser(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	created, err := h.service.Create(c.UserContext(), ident.UserID, *in)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) updateMaterial(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	in := new(Input)
	if err := c.BodyParser(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	updated, err := h.service.Update(c.UserContext(), ident.UserID, id, *in)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(updated)
}

type availabilityRequest struct {
	IsAvailable *bool `json:"isAvailable"`
}

func (h *Handler) setAvailability(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	payload := new(availabilityRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.IsAvailable == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": map[string]string{"isAvailable": "isAvailable is required"}})
	}

	m, err := h.service.SetAvailability(c.UserContext(), ident.UserID, id, *payload.IsAvailable)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(m)
}

func (h *Handler) deleteMaterial(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	if err := h.service.Delete(c.UserContext(), ident.UserID, id); err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(fiber.Map{"message": "material deleted"})
}
