package settings

// Secure settings keys shared with the theme engine.
const (
	MonetWallpaperColorPicker = "monet_wallpaper_color_picker"
	MonetChroma               = "monet_engine_chroma_factor"
	MonetLightness            = "monet_engine_white_luminance_user"

	MonetBaseAccent               = "monet_base_accent"
	MonetBaseAccentLight          = "monet_base_accent_light"
	MonetBaseAccentSecondary      = "monet_base_accent_secondary"
	MonetBaseAccentSecondaryLight = "monet_base_accent_secondary_light"
	MonetBaseAccentTertiary       = "monet_base_accent_tertiary"
	MonetBaseAccentTertiaryLight  = "monet_base_accent_tertiary_light"
	MonetBackground               = "monet_background"
	MonetBackgroundLight          = "monet_background_light"
	MonetBackgroundSecondary      = "monet_background_secondary"
	MonetBackgroundSecondaryLight = "monet_background_secondary_light"

	MonetBaseKeyguardAccent               = "monet_base_keyguard_accent"
	MonetBaseKeyguardAccentLight          = "monet_base_keyguard_accent_light"
	MonetKeyguardBackground               = "monet_keyguard_background"
	MonetKeyguardBackgroundLight          = "monet_keyguard_background_light"
	MonetKeyguardBackgroundSecondary      = "monet_keyguard_background_secondary"
	MonetKeyguardBackgroundSecondaryLight = "monet_keyguard_background_secondary_light"
)
