package order

import (
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

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/api/v1/orders", user.RequireRole(user.RoleVendor), h.createOrder)
	app.Get("/api/v1/orders", h.getOrders)
	app.Get("/api/v1/orders/:id<int>", h.getOrder)
	app.Get("/api/v1/orders/:id<int>/tracking", h.getTracking)
	app.Put("/api/v1/orders/:id<int>/status", user.RequireRole(user.RoleSupplier), h.updateStatus)
	app.Put("/api/v1/orders/:id<int>/cancel", h.cancelOrder)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) createOrder(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}

	payload := new(CreateInput)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	o, err := h.service.Create(c.UserContext(), ident, *payload)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(o)
}

func (h *Handler) getOrders(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}

	filter := Filter{
		Status: Status(c.Query("status")),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", defaultPageSize),
	}

	orders, err := h.service.List(c.UserContext(), ident, filter)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid id"})
	}

	o, err := h.service.Get(c.UserContext(), ident, id)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) getTracking(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid id"})
	}

	o, err := h.service.Get(c.UserContext(), ident, id)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(fiber.Map{
		"orderNumber":       o.OrderNumber,
		"status":            o.Status,
		"trackingNumber":    o.TrackingNumber,
		"estimatedDelivery": o.EstimatedDelivery,
		"actualDelivery":    o.ActualDelivery,
		"tracking":          o.Tracking,
	})
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid id"})
	}

	payload := new(StatusInput)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	o, err := h.service.UpdateStatus(c.UserContext(), ident, id, *payload)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) cancelOrder(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid id"})
	}

	payload := new(cancelRequest)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
	}

	o, err := h.service.Cancel(c.UserContext(), ident, id, payload.Reason)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(o)
}
