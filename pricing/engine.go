package pricing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"armario-estampados/models"
	"armario-estampados/utils"
)

const (
	OrderTypeRetail    = "detal"
	OrderTypeWholesale = "mayorista"

	ruleWholesaleOverride = "wholesale_override"
	ruleExtraSide         = "extra_side"
)

//go:embed default_pricing.json
var defaultConfig []byte

// PricingConfig represents the pricing configuration structure
type PricingConfig struct {
	Currency  string                                    `json:"currency"`
	Groups    map[string]GroupConfig                    `json:"groups"`
	Pricebook map[string]map[models.PrintSize]PriceEntry `json:"pricebook"`
	Rules     []Rule                                    `json:"rules"`
}

type GroupConfig struct {
	IncludeTypes []string `json:"includeTypes"`
	ExcludeTypes []string `json:"excludeTypes"`
}

type PriceEntry struct {
	Retail    int64 `json:"retail"`
	Wholesale int64 `json:"wholesale"`
}

type Rule struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Active     bool                   `json:"active"`
	Priority   int                    `json:"priority"`
	Type       string                 `json:"type"`
	Conditions map[string]interface{} `json:"conditions"`
	Action     map[string]interface{} `json:"action,omitempty"`
}

// QuoteInput describes one customized product for pricing
type QuoteInput struct {
	ProductType string // product type code or slug, matched against group includeTypes
	ProductID   string
	PrintSize   models.PrintSize
	Sides       int
	Qty         int
}

// Engine prices print sizes from a JSON price book
type Engine struct {
	config *PricingConfig
}

// NewEngine loads the price book at configPath, or the built-in one when configPath is empty
func NewEngine(configPath string) (*Engine, error) {
	data := defaultConfig
	source := "built-in defaults"
	if configPath != "" {
		if !filepath.IsAbs(configPath) {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get working directory: %w", err)
			}
			configPath = filepath.Join(wd, configPath)
		}
		var err error
		data, err = os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read pricing config: %w", err)
		}
		source = configPath
	}

	engine, err := Parse(data)
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", source).Msg("✅ PricingEngine: Successfully loaded pricing config")
	return engine, nil
}

// Parse builds an engine from raw JSON
func Parse(data []byte) (*Engine, error) {
	var config PricingConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse pricing config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid pricing config: %w", err)
	}

	// Sort rules by priority (highest first)
	sort.Slice(config.Rules, func(i, j int) bool {
		return config.Rules[i].Priority > config.Rules[j].Priority
	})
	return &Engine{config: &config}, nil
}

func validateConfig(config *PricingConfig) error {
	if config.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if len(config.Groups) == 0 {
		return fmt.Errorf("groups are required")
	}
	if len(config.Pricebook) == 0 {
		return fmt.Errorf("pricebook is required")
	}
	for group, sizes := range config.Pricebook {
		for size, entry := range sizes {
			if !size.Valid() {
				return fmt.Errorf("group %s: unknown print size %q", group, size)
			}
			if entry.Retail <= 0 || entry.Wholesale <= 0 {
				return fmt.Errorf("group %s size %s: prices must be positive", group, size)
			}
		}
	}
	return nil
}

// Currency returns the price book currency
func (e *Engine) Currency() string {
	return e.config.Currency
}

// groupFor determines which group a product type belongs to. Readable garment
// names ("camiseta") resolve through their catalog code.
func (e *Engine) groupFor(productType string) string {
	if group := e.matchGroup(productType); group != "" {
		return group
	}
	return e.matchGroup(utils.GarmentTypeCode(productType))
}

func (e *Engine) matchGroup(productType string) string {
	productType = strings.ToLower(strings.TrimSpace(productType))
	names := make([]string, 0, len(e.config.Groups))
	for name := range e.config.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		group := e.config.Groups[name]
		if containsFold(group.ExcludeTypes, productType) {
			continue
		}
		if containsFold(group.IncludeTypes, productType) {
			return name
		}
	}
	return ""
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Quote prices one customized product. The wholesale override switches the base price, the
// extra side rule adds a percentage of the base for every side after the first.
func (e *Engine) Quote(in QuoteInput) (*models.PricingQuote, error) {
	if !in.PrintSize.Valid() {
		return nil, fmt.Errorf("invalid print size %q", in.PrintSize)
	}
	if in.Qty <= 0 {
		in.Qty = 1
	}
	if in.Sides <= 0 {
		in.Sides = 1
	}

	group := e.groupFor(in.ProductType)
	if group == "" {
		return nil, fmt.Errorf("no price group for product type %q", in.ProductType)
	}
	entry, ok := e.config.Pricebook[group][in.PrintSize]
	if !ok {
		return nil, fmt.Errorf("print size %s is not offered for %s", in.PrintSize, group)
	}

	quote := &models.PricingQuote{
		ProductID:    in.ProductID,
		Group:        group,
		PrintSize:    in.PrintSize,
		Sides:        in.Sides,
		Qty:          in.Qty,
		Currency:     e.config.Currency,
		OrderType:    OrderTypeRetail,
		AppliedRules: []string{},
	}
	base := entry.Retail

	for _, rule := range e.config.Rules {
		if !rule.Active {
			continue
		}
		switch rule.Type {
		case ruleWholesaleOverride:
			if minQty, ok := rule.Conditions["minQty"].(float64); ok && in.Qty >= int(minQty) {
				base = entry.Wholesale
				quote.OrderType = OrderTypeWholesale
				quote.AppliedRules = append(quote.AppliedRules, rule.ID)
			}
		}
	}

	unit := base
	for _, rule := range e.config.Rules {
		if !rule.Active || rule.Type != ruleExtraSide {
			continue
		}
		minSides, _ := rule.Conditions["minSides"].(float64)
		percent, _ := rule.Action["percent"].(float64)
		if in.Sides >= int(minSides) && percent > 0 {
			extra := int64(in.Sides-1) * base * int64(percent) / 100
			unit += extra
			quote.AppliedRules = append(quote.AppliedRules, rule.ID)
		}
	}

	quote.UnitPrice = unit
	quote.LineTotal = unit * int64(in.Qty)
	quote.Formatted = utils.FormatMoney(quote.LineTotal, e.config.Currency)

	log.Debug().Str("group", group).Str("print_size", string(in.PrintSize)).Int("qty", in.Qty).
		Int64("unit_price", unit).Msg("💰 Quote calculated")
	return quote, nil
}
