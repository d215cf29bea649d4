package validation

import (
	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/rules"
)

// DefaultGates returns the built-in safety gates in evaluation order.
func DefaultGates() []Gate {
	return []Gate{
		{
			Name:       "speaker_phone",
			Primary:    rules.CategorySpeaker,
			Candidates: rules.NewSet(rules.CategoryPhone),
			Allow: func(_, c catalog.Product) bool {
				return speakerCrossCompat(c)
			},
		},
		{
			Name:       "speaker_power",
			Primary:    rules.CategorySpeaker,
			Candidates: rules.NewSet(rules.CategoryCharger, rules.CategoryPowerBank),
			Allow: func(p, c catalog.Product) bool {
				return speakerCrossCompat(c) || powerMatches(p, c)
			},
		},
		{
			Name:    "medical_non_medical",
			Primary: rules.CategoryMedicalEquipment,
			Allow: func(p, c catalog.Product) bool {
				if rules.MedicalCategories.Has(c.Category) {
					return true
				}
				return c.HasAttr("compatible_with_medical_model") ||
					attrIs(c, "compatible_brand", p.Brand) ||
					attrIs(c, "compatible_model", p.Model)
			},
		},
		{
			Name:       "printer_foreign_cartridge",
			Primary:    rules.CategoryPrinter,
			Candidates: rules.NewSet(rules.CategoryInkCartridge, rules.CategoryToner),
			Allow: func(p, c catalog.Product) bool {
				brand := c.AttrString("compatible_brand")
				if brand == "" || brand == p.Brand {
					return true
				}
				return c.HasAttr("cross_compatible")
			},
		},
	}
}

func speakerCrossCompat(c catalog.Product) bool {
	return c.HasAttr("compatible_with_speaker") ||
		c.HasAttr("compatible_with") ||
		c.HasAttr("cross_compatible_with_speaker")
}

// powerMatches compares the primary's declared input requirement with the
// candidate's declared output.
func powerMatches(p, c catalog.Product) bool {
	required := firstAttr(p, "required_voltage", "required_input")
	output := firstAttr(c, "output_voltage", "output")
	return required != "" && required == output
}

func firstAttr(p catalog.Product, keys ...string) string {
	for _, k := range keys {
		if v := p.AttrString(k); v != "" {
			return v
		}
	}
	return ""
}

func attrIs(p catalog.Product, key, want string) bool {
	return want != "" && p.AttrString(key) == want
}
