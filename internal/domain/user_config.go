package domain

import "github.com/google/uuid"

// AdvancedModeSettingKey is the user config key holding the product editor
// mode settings.
const AdvancedModeSettingKey = "mode.setting.advancedModeSettings"

// Tabs grouping the mode setting cards.
const (
	TabGeneral        = "general"
	TabSpecifications = "specifications"
)

// ModeToggle is the master switch of the advanced mode.
type ModeToggle struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// ModeSetting enables or disables one card of the product editor.
type ModeSetting struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Enabled    bool   `json:"enabled"`
	TabSetting string `json:"tabSetting"`
}

// AdvancedModeValue is the stored value of the advanced mode user config.
type AdvancedModeValue struct {
	AdvancedMode ModeToggle    `json:"advancedMode"`
	Settings     []ModeSetting `json:"settings"`
}

// UserConfig is a per-user key/value preference record.
type UserConfig struct {
	ID     uuid.UUID         `json:"id"`
	UserID uuid.UUID         `json:"userId"`
	Key    string            `json:"key"`
	Value  AdvancedModeValue `json:"value"`
}

// DefaultAdvancedModeSetting returns the settings used until the user stores
// their own: advanced mode on and every card enabled.
func DefaultAdvancedModeSetting(userID uuid.UUID) UserConfig {
	settings := []ModeSetting{
		{Key: "general_information", Label: "sw-product.detailBase.cardTitleProductInfo", TabSetting: TabGeneral},
		{Key: "prices", Label: "sw-product.detailBase.cardTitlePrices", TabSetting: TabGeneral},
		{Key: "deliverability", Label: "sw-product.detailBase.cardTitleDeliverabilityInfo", TabSetting: TabGeneral},
		{Key: "visibility_structure", Label: "sw-product.detailBase.cardTitleAssignment", TabSetting: TabGeneral},
		{Key: "labelling", Label: "sw-product.detailBase.cardTitleSettings", TabSetting: TabGeneral},
		{Key: "measures_packaging", Label: "sw-product.specifications.cardTitleMeasuresPackaging", TabSetting: TabSpecifications},
		{Key: "properties", Label: "sw-product.specifications.cardTitleProperties", TabSetting: TabSpecifications},
		{Key: "essential_characteristics", Label: "sw-product.specifications.cardTitleEssentialCharacteristics", TabSetting: TabSpecifications},
		{Key: "custom_products", Label: "sw-product.specifications.cardTitleCustomProduct", TabSetting: TabSpecifications},
		{Key: "custom_fields", Label: "sw-product.specifications.cardTitleCustomFields", TabSetting: TabSpecifications},
	}
	for i := range settings {
		settings[i].Enabled = true
	}
	return UserConfig{
		ID:     uuid.New(),
		UserID: userID,
		Key:    AdvancedModeSettingKey,
		Value: AdvancedModeValue{
			AdvancedMode: ModeToggle{Label: "sw-product.general.textAdvancedMode", Enabled: true},
			Settings:     settings,
		},
	}
}

// Clone returns a copy with its own settings slice.
func (c UserConfig) Clone() UserConfig {
	c.Value.Settings = append([]ModeSetting(nil), c.Value.Settings...)
	return c
}

// Enabled reports whether the card with key is enabled. Unknown keys are disabled.
func (v AdvancedModeValue) Enabled(key string) bool {
	if key == "" {
		return false
	}
	for _, s := range v.Settings {
		if s.Key == key {
			return s.Enabled
		}
	}
	return false
}

// DisplaySettings lists which editor cards are shown.
type DisplaySettings struct {
	ShowSettingsInformation bool `json:"showSettingsInformation"`
	ShowLabellingCard       bool `json:"showLabellingCard"`
	ShowCharacteristicsCard bool `json:"showCharacteristicsCard"`
	ShowCustomFieldCard     bool `json:"showCustomFieldCard"`
	ShowPropertiesCard      bool `json:"showPropertiesCard"`
	ShowCustomProduct       bool `json:"showCustomProduct"`
	ShowSettingPackaging    bool `json:"showSettingPackaging"`
	ShowSettingPrice        bool `json:"showSettingPrice"`
	ShowSettingDelivery     bool `json:"showSettingDelivery"`
	ShowSettingStructure    bool `json:"showSettingStructure"`
}

// DisplaySettings derives the visible cards. With the advanced mode off only
// the properties card follows its own toggle.
func (v AdvancedModeValue) DisplaySettings() DisplaySettings {
	advanced := v.AdvancedMode.Enabled
	return DisplaySettings{
		ShowSettingsInformation: v.Enabled("general_information") && advanced,
		ShowLabellingCard:       v.Enabled("labelling") && advanced,
		ShowCharacteristicsCard: v.Enabled("essential_characteristics") && advanced,
		ShowCustomFieldCard:     v.Enabled("custom_fields") && advanced,
		ShowPropertiesCard:      v.Enabled("properties"),
		ShowCustomProduct:       v.Enabled("custom_products") && advanced,
		ShowSettingPackaging:    v.Enabled("measures_packaging") && advanced,
		ShowSettingPrice:        v.Enabled("prices") && advanced,
		ShowSettingDelivery:     v.Enabled("deliverability") && advanced,
		ShowSettingStructure:    v.Enabled("visibility_structure") && advanced,
	}
}
