package config

import "slices"

// ChannelsConfig contains per-channel configuration.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// WhatsAppConfig configures the WhatsApp bridge channel.
type WhatsAppConfig struct {
	Enabled       bool                `json:"enabled"`
	BridgeURL     string              `json:"bridge_url"`
	AllowFrom     FlexibleStringSlice `json:"allow_from"`
	GroupPolicy   string              `json:"group_policy,omitempty"`   // "open" (default), "allowlist", "disabled"
	AllowGroups   FlexibleStringSlice `json:"allow_groups,omitempty"`   // groups accepted under "allowlist"
	ControlGroups FlexibleStringSlice `json:"control_groups,omitempty"` // administrative groups
	RateLimitRPM  int                 `json:"rate_limit_rpm,omitempty"` // per sender; 0 = unlimited
}

// IsControlGroup reports whether chatID is configured as a control group.
func (w WhatsAppConfig) IsControlGroup(chatID string) bool {
	return slices.Contains(w.ControlGroups, chatID)
}
