// Package money keeps all price arithmetic on decimals so totals never pick
// up float drift before they are rounded to cents.
package money

import "github.com/shopspring/decimal"

// Round rounds an amount to two decimal places.
func Round(amount float64) float64 {
	f, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return f
}

// LineTotal returns price × quantity rounded to cents.
func LineTotal(price float64, quantity int) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity))).Round(2).Float64()
	return f
}

// Sum adds the amounts and rounds the result to cents.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// Total computes subtotal + fee - discount + taxes, rounded to cents.
func Total(subtotal, fee, discount, taxes float64) float64 {
	f, _ := decimal.NewFromFloat(subtotal).
		Add(decimal.NewFromFloat(fee)).
		Sub(decimal.NewFromFloat(discount)).
		Add(decimal.NewFromFloat(taxes)).
		Round(2).Float64()
	return f
}
