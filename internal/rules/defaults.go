package rules

import (
	"github.com/kalambet/recoagent/internal/catalog"
)

// Category names shared by several rules.
const (
	CategoryPhone            = "phone"
	CategoryCharger          = "charger"
	CategoryPowerBank        = "power_bank"
	CategorySpeaker          = "speaker"
	CategoryPrinter          = "printer"
	CategoryInkCartridge     = "ink_cartridge"
	CategoryToner            = "toner"
	CategoryMedicalEquipment = "medical_equipment"
	CategoryWatchStrap       = "watch_strap"
	CategoryScreenGuard      = "screen_guard"
)

// MedicalAccessories are the consumable and accessory categories that can
// be paired with medical equipment.
var MedicalAccessories = NewSet("medical_supplies", "medical_accessory", "filters", "mask", "tubing", "mouthpiece")

// MedicalCategories is MedicalAccessories plus the equipment itself.
var MedicalCategories = NewSet("medical_equipment", "medical_supplies", "medical_accessory", "filters", "mask", "tubing", "mouthpiece")

var defaultTable = buildDefault()

// Default returns the process-wide rule table. It must not be modified;
// derive variants with the With* methods.
func Default() *Table {
	return defaultTable
}

func buildDefault() *Table {
	return &Table{
		compat: map[string]Set{
			"phone":             NewSet("phone", "phone_case", "screen_guard", "charger", "pouch", "earbuds", "power_bank"),
			"watch_strap":       NewSet("watch_strap", "watch_tool", "spring_bar", "watch_box"),
			"charger":           NewSet("cable", "adapter", "power_bank"),
			"printer":           NewSet("ink_cartridge", "toner", "print_head", "maintenance_kit", "paper"),
			"tv":                NewSet("soundbar", "home_theatre", "remote", "wall_mount"),
			"pan":               NewSet("scrubber", "spatula", "lid", "pan_care_kit"),
			"nebulizer":         NewSet("mask", "filters", "tubing", "mouthpiece"),
			"medical_equipment": MedicalCategories,
			"speaker":           NewSet("speaker", "speaker_stand", "aux_cable", "bluetooth_transmitter", "case"),
		},
		scoreRules: defaultScoreRules(),
		exclusions: []Exclusion{
			{Primary: CategoryWatchStrap, Candidate: CategoryScreenGuard},
		},
		deprioritize: map[string]Set{
			CategoryMedicalEquipment: NewSet("phone", "charger", "speaker", "phone_case", "screen_guard"),
		},
	}
}

func defaultScoreRules() []ScoreRule {
	printerConsumables := NewSet("ink_cartridge", "toner", "print_head")

	return []ScoreRule{
		{
			Name:       "phone_exact_model",
			Primary:    "phone",
			Candidates: NewSet("phone_case", "screen_guard", "pouch", "charger"),
			Points:     50,
			Match: func(p, c catalog.Product) bool {
				return attrEquals(c, "compatible_model", p.Model) && attrEquals(c, "compatible_brand", p.Brand)
			},
		},
		{
			Name:       "phone_charger_port",
			Primary:    "phone",
			Candidates: NewSet("charger"),
			Points:     25,
			Match: func(p, c catalog.Product) bool {
				return attrEquals(c, "port_type", p.AttrString("port_type"))
			},
		},
		{
			Name:    "watch_strap_size",
			Primary: "watch_strap",
			Points:  40,
			Match: func(p, c catalog.Product) bool {
				return attrEquals(c, "size_mm", p.AttrString("size_mm"))
			},
		},
		{
			Name:       "printer_series",
			Primary:    "printer",
			Candidates: printerConsumables,
			Points:     50,
			Match: func(p, c catalog.Product) bool {
				return attrEquals(c, "compatible_series", p.AttrString("series"))
			},
		},
		{
			Name:       "printer_brand",
			Primary:    "printer",
			Candidates: printerConsumables,
			Points:     20,
			Match: func(p, c catalog.Product) bool {
				return attrEquals(c, "compatible_brand", p.Brand)
			},
		},
		{
			Name:       "nebulizer_accessory",
			Primary:    "nebulizer",
			Candidates: NewSet("mask", "filters", "tubing"),
			Points:     40,
			Match: func(p, c catalog.Product) bool {
				return attrEquals(c, "compatible_model", p.Model) || attrEquals(c, "compatible_brand", p.Brand)
			},
		},
		{
			Name:    "speaker_accessory",
			Primary: "speaker",
			Points:  20,
			Match: func(_, c catalog.Product) bool {
				return c.HasAttr("compatible_with_speaker") || c.HasTag("speaker")
			},
		},
		{
			Name:       "medical_accessory_match",
			Primary:    "medical_equipment",
			Candidates: MedicalAccessories,
			Points:     80,
			Match: func(p, c catalog.Product) bool {
				return attrEquals(c, "compatible_model", p.Model) || attrEquals(c, "compatible_brand", p.Brand)
			},
		},
		{
			Name:    "medical_declared_model",
			Primary: "medical_equipment",
			Points:  60,
			Match: func(p, c catalog.Product) bool {
				return attrEquals(c, "compatible_with_medical_model", p.Model)
			},
		},
		{
			Name:    "medical_tag_overlap",
			Primary: "medical_equipment",
			Points:  10,
			Match: func(p, c catalog.Product) bool {
				return TagOverlap(p.Tags, c.Tags) > 0
			},
		},
	}
}
