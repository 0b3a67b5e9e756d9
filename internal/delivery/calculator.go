// Package delivery prices shipping for a negotiated line from its unit type
// and quantity.
package delivery

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/enums"
)

var (
	standardMaxKg  = decimal.NewFromInt(50)
	semiTruckMaxKg = decimal.NewFromInt(500)
)

// unitWeightsKg converts one unit of a weight-based unit type to kilograms.
var unitWeightsKg = map[string]decimal.Decimal{
	"kg":       decimal.NewFromInt(1),
	"kilogram": decimal.NewFromInt(1),
	"ton":      decimal.NewFromInt(1000),
	"tonne":    decimal.NewFromInt(1000),
	"liter":    decimal.NewFromInt(1),
	"litre":    decimal.NewFromInt(1),
	"bag":      decimal.NewFromInt(25),
	"g":        decimal.RequireFromString("0.001"),
	"gram":     decimal.RequireFromString("0.001"),
}

var pieceUnits = map[string]struct{}{"pcs": {}, "piece": {}, "pieces": {}}

var estimatedDays = map[enums.DeliveryMethod]string{
	enums.DeliveryMethodPickup:     "0",
	enums.DeliveryMethodNegotiated: "2-5",
	enums.DeliveryMethodStandard:   "3-5",
	enums.DeliveryMethodSemiTruck:  "5-7",
	enums.DeliveryMethodTruck:      "7-10",
}

// Rates are the tariff inputs of the calculator.
type Rates struct {
	PerKg         decimal.Decimal
	PieceFlat     decimal.Decimal
	StandardMin   decimal.Decimal
	SemiTruckBase decimal.Decimal
	TruckBase     decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{
		PerKg:         decimal.NewFromInt(7),
		PieceFlat:     decimal.NewFromInt(70),
		StandardMin:   decimal.NewFromInt(50),
		SemiTruckBase: decimal.NewFromInt(200),
		TruckBase:     decimal.NewFromInt(500),
	}
}

// RatesFromConfig parses the decimal strings of the delivery config.
func RatesFromConfig(cfg config.DeliveryConfig) (Rates, error) {
	var r Rates
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"rate per kg", cfg.RatePerKg, &r.PerKg},
		{"piece flat fee", cfg.PieceFlatFee, &r.PieceFlat},
		{"standard min fee", cfg.StandardMinFee, &r.StandardMin},
		{"semi-truck base fee", cfg.SemiTruckBaseFee, &r.SemiTruckBase},
		{"truck base fee", cfg.TruckBaseFee, &r.TruckBase},
	} {
		v, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return Rates{}, fmt.Errorf("delivery %s: %w", f.name, err)
		}
		if v.IsNegative() {
			return Rates{}, fmt.Errorf("delivery %s must be non-negative", f.name)
		}
		*f.dst = v
	}
	return r, nil
}

// Item is one shipped line.
type Item struct {
	UnitType string
	Quantity int
}

// Option is a delivery method offered for a set of items.
type Option struct {
	Method        enums.DeliveryMethod `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Fee           decimal.Decimal      `json:"fee"`
	EstimatedDays string               `json:"estimated_days"`
	Negotiated    bool                 `json:"is_negotiated,omitempty"`
}

// Quote is the resolved method and fee for a checkout.
type Quote struct {
	Method        enums.DeliveryMethod `json:"delivery_method"`
	Requested     enums.DeliveryMethod `json:"requested_method"`
	Fee           decimal.Decimal      `json:"delivery_fee"`
	TotalWeightKg decimal.Decimal      `json:"total_weight_kg"`
	EstimatedDays string               `json:"estimated_days"`
	FellBack      bool                 `json:"fell_back"`
}

type Calculator struct {
	rates Rates
}

func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

func normalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return "pcs"
	}
	return u
}

// TotalWeight sums the kilogram weight of weight-based items, rounded to two
// decimals. Piece items weigh nothing.
func (c *Calculator) TotalWeight(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if w, ok := unitWeightsKg[normalizeUnit(item.UnitType)]; ok && item.Quantity > 0 {
			total = total.Add(w.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return total.Round(2)
}

func classify(items []Item) (hasPieces, hasWeight bool) {
	for _, item := range items {
		unit := normalizeUnit(item.UnitType)
		if _, ok := pieceUnits[unit]; ok {
			hasPieces = true
		}
		if _, ok := unitWeightsKg[unit]; ok {
			hasWeight = true
		}
	}
	return hasPieces, hasWeight
}

// Available lists the methods offered for the items. Pickup and negotiated
// delivery are always present.
func (c *Calculator) Available(items []Item) []Option {
	weight := c.TotalWeight(items)
	hasPieces, hasWeight := classify(items)

	options := []Option{
		{Method: enums.DeliveryMethodPickup, Name: "Pickup by Yourself", Description: "Collect from the warehouse or farm", Fee: decimal.Zero},
		{Method: enums.DeliveryMethodNegotiated, Name: "Negotiated Delivery", Description: "Seller arranges delivery with negotiated charges", Fee: decimal.Zero, Negotiated: true},
	}
	if hasPieces && !hasWeight {
		options = append(options, Option{Method: enums.DeliveryMethodStandard, Name: "Standard Delivery (Pieces)", Description: "Fixed rate for piece-based items", Fee: c.rates.PieceFlat})
	}
	if weight.IsPositive() {
		switch {
		case weight.LessThanOrEqual(standardMaxKg):
			options = append(options, Option{Method: enums.DeliveryMethodStandard, Name: "Standard Delivery", Description: "For orders up to 50kg", Fee: c.standardWeightFee(weight)})
		case weight.LessThanOrEqual(semiTruckMaxKg):
			options = append(options, Option{Method: enums.DeliveryMethodSemiTruck, Name: "Semi-Truck Delivery", Description: "For orders over 50kg up to 500kg", Fee: c.rates.SemiTruckBase.Add(weight.Mul(c.rates.PerKg))})
		default:
			options = append(options, Option{Method: enums.DeliveryMethodTruck, Name: "Full Truck Delivery", Description: "For orders over 500kg", Fee: c.rates.TruckBase.Add(weight.Mul(c.rates.PerKg))})
		}
	}
	for i := range options {
		options[i].EstimatedDays = EstimatedDays(options[i].Method)
	}
	return options
}

func (c *Calculator) standardWeightFee(weight decimal.Decimal) decimal.Decimal {
	return decimal.Max(weight.Mul(c.rates.PerKg), c.rates.StandardMin)
}

// Fee prices one method regardless of availability. negotiatedFee is only
// used by the negotiated method.
func (c *Calculator) Fee(method enums.DeliveryMethod, items []Item, negotiatedFee decimal.Decimal) decimal.Decimal {
	weight := c.TotalWeight(items)
	switch method {
	case enums.DeliveryMethodNegotiated:
		if negotiatedFee.IsNegative() {
			return decimal.Zero
		}
		return negotiatedFee
	case enums.DeliveryMethodStandard:
		if hasPieces, hasWeight := classify(items); hasPieces && !hasWeight {
			return c.rates.PieceFlat
		}
		return c.standardWeightFee(weight)
	case enums.DeliveryMethodSemiTruck:
		return c.rates.SemiTruckBase.Add(weight.Mul(c.rates.PerKg))
	case enums.DeliveryMethodTruck:
		return c.rates.TruckBase.Add(weight.Mul(c.rates.PerKg))
	default:
		return decimal.Zero
	}
}

func (c *Calculator) IsAvailable(method enums.DeliveryMethod, items []Item) bool {
	for _, opt := range c.Available(items) {
		if opt.Method == method {
			return true
		}
	}
	return false
}

// Recommended picks the method matching the items' weight band.
func (c *Calculator) Recommended(items []Item) enums.DeliveryMethod {
	hasPieces, hasWeight := classify(items)
	if hasPieces && !hasWeight {
		return enums.DeliveryMethodStandard
	}
	weight := c.TotalWeight(items)
	if hasWeight && weight.IsPositive() {
		switch {
		case weight.LessThanOrEqual(standardMaxKg):
			return enums.DeliveryMethodStandard
		case weight.LessThanOrEqual(semiTruckMaxKg):
			return enums.DeliveryMethodSemiTruck
		default:
			return enums.DeliveryMethodTruck
		}
	}
	return enums.DeliveryMethodPickup
}

// Quote resolves the requested method, falling back to the recommended one
// when it is not offered for these items. An empty request means negotiated.
func (c *Calculator) Quote(requested enums.DeliveryMethod, items []Item, negotiatedFee decimal.Decimal) Quote {
	if requested == "" {
		requested = enums.DeliveryMethodNegotiated
	}
	method := requested
	if !c.IsAvailable(method, items) {
		method = c.Recommended(items)
	}
	return Quote{
		Method:        method,
		Requested:     requested,
		Fee:           c.Fee(method, items, negotiatedFee).Round(2),
		TotalWeightKg: c.TotalWeight(items),
		EstimatedDays: EstimatedDays(method),
		FellBack:      method != requested,
	}
}

func EstimatedDays(method enums.DeliveryMethod) string {
	if days, ok := estimatedDays[method]; ok {
		return days
	}
	return "3-5"
}
