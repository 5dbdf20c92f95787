package cart

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/user"
)

// Handler delegates cart operations to the cart service.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	vendorOnly := user.RequireRole(user.RoleVendor)
	app.Get("/api/v1/cart", vendorOnly, h.getCart)
	app.Delete("/api/v1/cart", vendorOnly, h.clearCart)
	app.Post("/api/v1/cart/items", vendorOnly, h.addItem)
	app.Put("/api/v1/cart/items/:materialId<int>", vendorOnly, h.updateItem)
	app.Delete("/api/v1/cart/items/:materialId<int>", vendorOnly, h.removeItem)
}

type addItemRequest struct {
	MaterialID int `json:"materialId"`
	Quantity   int `json:"quantity"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}

	cart, err := h.service.Get(c.UserContext(), ident.UserID)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}

	payload := new(addItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.MaterialID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid materialId"})
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}

	cart, err := h.service.AddItem(c.UserContext(), ident.UserID, payload.MaterialID, payload.Quantity)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) updateItem(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}
	materialID, err := c.ParamsInt("materialId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	payload := new(updateItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Quantity == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": map[string]string{"quantity": "quantity is required"}})
	}

	cart, err := h.service.UpdateItem(c.UserContext(), ident.UserID, materialID, *payload.Quantity)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}
	materialID, err := c.ParamsInt("materialId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	cart, err := h.service.RemoveItem(c.UserContext(), ident.UserID, materialID)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	ident, err := user.IdentityFromCtx(c)
	if err != nil {
		return apperr.Write(c, err)
	}

	cart, err := h.service.Clear(c.UserContext(), ident.UserID)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(fiber.Map{"message": "cart cleared", "cart": cart})
}
