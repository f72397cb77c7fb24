package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPrice holds per-token unit prices in dollars. Cost is derived and
// informational only; balance arithmetic is always in whole credits.
type ModelPrice struct {
	InputPerToken  float64 `yaml:"input_per_token"`
	OutputPerToken float64 `yaml:"output_per_token"`
}

// defaultPrices covers the models we run by default. Values are per-token
// (not per-million) to keep the cost arithmetic direct.
var defaultPrices = map[string]ModelPrice{
	"gpt-4o":            {InputPerToken: 2.50e-6, OutputPerToken: 10.00e-6},
	"gpt-4o-mini":       {InputPerToken: 0.15e-6, OutputPerToken: 0.60e-6},
	"claude-sonnet-4-5": {InputPerToken: 3.00e-6, OutputPerToken: 15.00e-6},
	"claude-haiku-4-5":  {InputPerToken: 1.00e-6, OutputPerToken: 5.00e-6},
}

// fallbackPrice is used for models missing from the table.
var fallbackPrice = ModelPrice{InputPerToken: 1.00e-6, OutputPerToken: 4.00e-6}

// LoadPricing returns the pricing table, overlaying entries from the
// optional YAML file at path when it is non-empty.
func LoadPricing(path string) (map[string]ModelPrice, error) {
	prices := make(map[string]ModelPrice, len(defaultPrices))
	for k, v := range defaultPrices {
		prices[k] = v
	}

	if path == "" {
		return prices, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	var overlay map[string]ModelPrice
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}
	for k, v := range overlay {
		prices[k] = v
	}
	return prices, nil
}

// PriceFor returns the price entry for a model, falling back to a generic
// entry for unknown models.
func PriceFor(prices map[string]ModelPrice, model string) ModelPrice {
	if p, ok := prices[model]; ok {
		return p
	}
	return fallbackPrice
}
