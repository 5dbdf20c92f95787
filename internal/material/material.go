package material

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wichananm65/vendor-supply-backend/internal/geo"
)

type Category string

const (
	CategoryVegetables Category = "vegetables"
	CategoryFruits     Category = "fruits"
	CategoryGrains     Category = "grains"
	CategorySpices     Category = "spices"
	CategoryDairy      Category = "dairy"
	CategoryMeat       Category = "meat"
	CategoryOils       Category = "oils"
	CategoryBeverages  Category = "beverages"
	CategoryPackaging  Category = "packaging"
	CategoryCleaning   Category = "cleaning"
	CategoryOther      Category = "other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryVegetables, CategoryFruits, CategoryGrains, CategorySpices, CategoryDairy, CategoryMeat,
	CategoryOils, CategoryBeverages, CategoryPackaging, CategoryCleaning, CategoryOther,
}

type Unit string

const (
	UnitKg     Unit = "kg"
	UnitGram   Unit = "g"
	UnitLiter  Unit = "liter"
	UnitMl     Unit = "ml"
	UnitPiece  Unit = "piece"
	UnitDozen  Unit = "dozen"
	UnitPacket Unit = "packet"
	UnitBox    Unit = "box"
	UnitBag    Unit = "bag"
)

var Units = []Unit{UnitKg, UnitGram, UnitLiter, UnitMl, UnitPiece, UnitDozen, UnitPacket, UnitBox, UnitBag}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

type Material struct {
	ID               int          `json:"id"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	Category         Category     `json:"category"`
	Price            float64      `json:"price"`
	Quantity         int          `json:"quantity"`
	Unit             Unit         `json:"unit"`
	MinOrderQuantity int          `json:"minOrderQuantity"`
	SupplierID       int          `json:"supplierId"`
	Location         geo.Location `json:"location"`
	IsAvailable      bool         `json:"isAvailable"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Available returns the quantity that can still be ordered.
func (m Material) Available() int {
	if !m.IsAvailable {
		return 0
	}
	return m.Quantity
}

var (
	ErrNotFound          = errors.New("material not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockLine is a quantity of one material to take from or return to stock.
type StockLine struct {
	MaterialID int
	Quantity   int
}

// StockError reports which material could not cover a reservation.
type StockError struct {
	MaterialID int
	Name       string
	Available  int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for material %d (%s): %d available", e.MaterialID, e.Name, e.Available)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }

// MergeLines sums duplicate materials and orders lines by material id so
// concurrent reservations lock rows in the same order.
func MergeLines(lines []StockLine) []StockLine {
	totals := make(map[int]int, len(lines))
	for _, l := range lines {
		totals[l.MaterialID] += l.Quantity
	}

	out := make([]StockLine, 0, len(totals))
	for id, qty := range totals {
		out = append(out, StockLine{MaterialID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaterialID < out[j].MaterialID })
	return out
}
