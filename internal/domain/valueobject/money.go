package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
)

// Суммы хранятся в NUMERIC(14,2) и передаются как float64,
// вся арифметика идёт через decimal с округлением до копеек.

// Fee возвращает round(amount × rate, 2).
func Fee(amount, rate float64) float64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(rate)).
		Round(2).
		InexactFloat64()
}

// Add складывает суммы без накопления ошибки float64.
func Add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// Sub вычитает b из a.
func Sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// Round2 округляет сумму до двух знаков.
func Round2(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// MinorUnits переводит сумму в минимальные единицы валюты (центы).
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Charge - расчёт суммы к оплате брендом.
type Charge struct {
	Amount       float64
	GatewayFee   float64
	TotalCharged float64
}

// NewCharge считает комиссию шлюза поверх цены креатора.
func NewCharge(amount, feeRate float64) (Charge, error) {
	if amount <= 0 {
		return Charge{}, apperror.Validation("сумма заказа должна быть больше нуля")
	}
	if feeRate < 0 || feeRate >= 1 {
		return Charge{}, apperror.Validation("некорректная ставка комиссии шлюза")
	}
	amount = Round2(amount)
	fee := Fee(amount, feeRate)
	return Charge{
		Amount:       amount,
		GatewayFee:   fee,
		TotalCharged: Add(amount, fee),
	}, nil
}

// Payout - разбиение эскроу при выплате креатору.
type Payout struct {
	PlatformFee float64
	Net         float64
}

// NewPayout удерживает комиссию платформы из суммы эскроу.
func NewPayout(escrowAmount, platformFeeRate float64) Payout {
	fee := Fee(escrowAmount, platformFeeRate)
	return Payout{PlatformFee: fee, Net: Sub(escrowAmount, fee)}
}
