package repository

import "strings"

// Provider names an upstream market data vendor.
type Provider string

const (
	ProviderFinnhub      Provider = "finnhub"
	ProviderAlphaVantage Provider = "alphavantage"
)

// IsValidProvider returns true if p is a supported provider.
func IsValidProvider(p Provider) bool {
	switch p {
	case ProviderFinnhub, ProviderAlphaVantage:
		return true
	default:
		return false
	}
}

// DefaultProvider returns the default provider.
func DefaultProvider() Provider { return ProviderFinnhub }

// NormalizeProvider converts raw string to a valid provider (or default).
func NormalizeProvider(s string) Provider {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if IsValidProvider(p) {
		return p
	}
	return DefaultProvider()
}

// ProviderSelector is implemented by sources that can consult a chosen vendor first.
type ProviderSelector interface {
	Prefer(p Provider) MarketDataSource
}
