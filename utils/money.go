package utils

import (
	"strconv"
	"strings"
)

// moneyStyle is how one currency is printed
type moneyStyle struct {
	symbol    string
	thousands byte
}

var moneyStyles = map[string]moneyStyle{
	"COP": {symbol: "$", thousands: '.'},
	"USD": {symbol: "US$", thousands: ','},
	"EUR": {symbol: "€", thousands: '.'},
}

// FormatMoney formats a whole amount in the given ISO currency, e.g. 12500 COP as "$12.500".
// Unknown currencies print the code as prefix with a dot separator.
func FormatMoney(amount int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	style, ok := moneyStyles[code]
	if !ok {
		style = moneyStyle{symbol: code + " ", thousands: '.'}
	}

	var b strings.Builder
	if amount < 0 {
		b.WriteByte('-')
		amount = -amount
	}
	b.WriteString(style.symbol)

	s := strconv.FormatInt(amount, 10)
	head := len(s) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(s[:head])
	for i := head; i < len(s); i += 3 {
		b.WriteByte(style.thousands)
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
