package services

import (
	"math"

	"github.com/nulzo/model-hub/internal/core/domain"
)

// EstimateCost derives a cost breakdown from usage and per-million token
// prices. Nil usage or absent pricing yields nil: no cost is ever invented.
func EstimateCost(prices *domain.TokenPrices, usage *domain.Usage) *domain.CostBreakdown {
	if usage == nil || prices == nil {
		return nil
	}
	if prices.Input == 0 && prices.Output == 0 {
		return nil
	}
	inputCost := float64(usage.InputTokens) * prices.Input / 1_000_000
	outputCost := float64(usage.OutputTokens) * prices.Output / 1_000_000
	return &domain.CostBreakdown{
		InputCostUSD:      roundUSD(inputCost),
		OutputCostUSD:     roundUSD(outputCost),
		TotalCostUSD:      roundUSD(inputCost + outputCost),
		PricingPerMillion: prices,
	}
}

// roundUSD keeps micro-dollar precision, enough for per-token accounting.
func roundUSD(v float64) float64 {
	return math.Round(v*1_000_000) / 1_000_000
}
