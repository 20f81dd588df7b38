package utils

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// garmentColors maps the product colour variants to their swatch values.
// Names are normalized to lowercase before lookup.
var garmentColors = map[string]string{
	"white":             "#ffffff",
	"black":             "#000000",
	"blanco":            "#ffffff",
	"negro":             "#111111",
	"amarillo":          "#f5d000",
	"amarillo jaspeado": "#e8d36a",
	"azul cielo":        "#87ceeb",
	"azul petróleo":     "#1f4e5f",
	"fucsia":            "#d6246e",
	"rosado":            "#f4a6c0",
	"rosa claro":        "#f9d3df",
	"palo de rosa":      "#d8a7a7",
	"tabaco":            "#8b5a2b",
	"rojo":              "#c0392b",
	"verde limón":       "#a8d92f",
	"verde militar":     "#4b5320",
	"verde sapo":        "#6b8e23",
	"café":              "#6f4e37",
	"naranja":           "#f07c1b",
	"gris jaspeado":     "#a9a9a9",
	"moraleche":         "#c3b1e1",
}

// ParseColor accepts "#rgb", "#rrggbb", "#rrggbbaa", a garment colour name or its catalog code
func ParseColor(s string) (color.NRGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if name, ok := ColorNameForCode(v); ok {
		v = name
	}
	if hex, ok := garmentColors[v]; ok {
		v = hex
	}
	if !strings.HasPrefix(v, "#") {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v = v[1:]
	if len(v) == 3 {
		v = string([]byte{v[0], v[0], v[1], v[1], v[2], v[2]})
	}
	if len(v) == 6 {
		v += "ff"
	}
	if len(v) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}
