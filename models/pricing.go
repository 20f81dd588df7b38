package models

// PricingQuote is the unit and line price of one customized product
type PricingQuote struct {
	ProductID    string    `json:"productId"`
	Group        string    `json:"group"`
	PrintSize    PrintSize `json:"printSize"`
	Sides        int       `json:"sides"`        // customized sides
	Qty          int       `json:"qty"`          // units of this configuration
	UnitPrice    int64     `json:"unitPrice"`    // print price per unit, surcharges included
	LineTotal    int64     `json:"lineTotal"`    // UnitPrice * Qty
	Currency     string    `json:"currency"`     // ISO code from the price book
	OrderType    string    `json:"orderType"`    // "mayorista" or "detal"
	AppliedRules []string  `json:"appliedRules"` // rule IDs that changed the price
	Formatted    string    `json:"formatted"`    // LineTotal for display
}
