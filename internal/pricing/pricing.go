// Package pricing derives weekly plan prices and cart shipping fees.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mealbox-backend/internal/calories"
	"github.com/angelmondragon/mealbox-backend/pkg/config"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Engine holds the configured rates. Plan orders always pay the flat
// ShippingCharge; only carts get free shipping above the threshold.
type Engine struct {
	CaloriePrice          decimal.Decimal
	ShippingCharge        decimal.Decimal
	Currency              enums.Currency
	FreeShippingThreshold decimal.Decimal
}

func NewEngine(rates config.PricingRates) *Engine {
	return &Engine{
		CaloriePrice:          rates.CaloriePrice,
		ShippingCharge:        rates.ShippingCharge,
		Currency:              enums.Currency(rates.Currency),
		FreeShippingThreshold: rates.FreeShippingThreshold,
	}
}

// Quote is a weekly plan price.
type Quote struct {
	Kcal     float64
	Total    decimal.Decimal
	Shipping decimal.Decimal
	Currency enums.Currency
}

// AmountCents is the total in minor units, rounded half away from zero.
func (q Quote) AmountCents() int64 {
	return q.Total.Mul(hundred).Round(0).IntPart()
}

// PlanWeeklyPrice prices numberOfDays of the profile's daily calorie need.
func (e *Engine) PlanWeeklyPrice(p calories.Profile, numberOfDays int) (Quote, bool) {
	kcal, ok := calories.CalorieNeed(p)
	if !ok {
		return Quote{}, false
	}
	totalKcal := decimal.NewFromFloat(kcal).Mul(decimal.NewFromInt(int64(numberOfDays)))
	return Quote{
		Kcal:     kcal,
		Total:    totalKcal.Mul(e.CaloriePrice).Add(e.ShippingCharge),
		Shipping: e.ShippingCharge,
		Currency: e.Currency,
	}, true
}

// CartShipping is the product-cart fee: nothing for an empty cart or one
// at or above the free shipping threshold, the flat charge otherwise.
func (e *Engine) CartShipping(amount decimal.Decimal) decimal.Decimal {
	if amount.IsPositive() && amount.LessThan(e.FreeShippingThreshold) {
		return e.ShippingCharge
	}
	return decimal.Zero
}
