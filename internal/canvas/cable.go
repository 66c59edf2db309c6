package canvas

import "strings"

var lowCurrentLabels = map[string]string{
	"phone":    "Тел.",
	"lan":      "LAN",
	"coax":     "Coax",
	"security": "СБ",
}

// Label is the line caption derived from the cable spec, for example
// "10 кВ (АСБ 3х95)".
func (c CableSpec) Label() string {
	var label string
	switch c.Category {
	case "power":
		label = c.Voltage + " кВ"
	case "low_current":
		if l, ok := lowCurrentLabels[c.Subcategory]; ok {
			label = l
		} else {
			label = Translate("low_current")
		}
	case "fiber":
		label = Translate("fiber")
	}
	if c.Mark != "" {
		label += " (" + c.Mark + ")"
	}
	return strings.TrimSpace(label)
}

// Key groups identical cables in the BOM.
func (c CableSpec) Key() string {
	variant := c.Voltage
	if variant == "" {
		variant = c.Subcategory
	}
	return strings.Join([]string{c.Category, c.InstallMethod, variant, c.Mark}, "|")
}
