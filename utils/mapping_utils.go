package utils

import (
	"strings"
)

// garmentTypeCodes maps garment type names to the catalog codes
var garmentTypeCodes = map[string]string{
	"buso estándar":       "BU",
	"buso tipo esqueleto": "BE",
	"camiseta":            "CA",
	"impermeable":         "IM",
	"camiseta halloween":  "HW",
	"pañoleta":            "PA",
	"buso sin mangas":     "BC",
}

// colorCodes maps catalog colour codes to the garment colour names ParseColor knows
var colorCodes = map[string]string{
	"AM_JS": "amarillo jaspeado",
	"AC":    "azul cielo",
	"AM":    "amarillo",
	"FS":    "fucsia",
	"RS":    "rosado",
	"TA":    "tabaco",
	"AP":    "azul petróleo",
	"RO":    "rojo",
	"VL":    "verde limón",
	"CF":    "café",
	"NA":    "naranja",
	"GR_JS": "gris jaspeado",
	"ML":    "moraleche",
	"NG":    "negro",
	"PR":    "palo de rosa",
	"RP":    "rosa claro",
	"VS":    "verde sapo",
	"VM":    "verde militar",
}

// GarmentTypeCode maps a garment type name to its catalog code.
// Input is normalized to lowercase before mapping.
// Returns the uppercase input when the name is unknown (it may already be a code).
func GarmentTypeCode(garmentType string) string {
	lower := strings.ToLower(strings.TrimSpace(garmentType))
	if code, exists := garmentTypeCodes[lower]; exists {
		return code
	}
	return strings.ToUpper(lower)
}

// ColorNameForCode maps a catalog colour code such as "NG" or "gr_js" to its name
func ColorNameForCode(code string) (string, bool) {
	name, ok := colorCodes[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}
