package resources

import (
	"embed"
	"path"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

//go:embed ui/dark/*.svg ui/dark/*.png ui/light/*.svg ui/light/*.png
var assets embed.FS

type UIIcon string

const (
	UIIconTelemetry       UIIcon = "telemetry"
	UIIconDevice          UIIcon = "device"
	UIIconFirmware        UIIcon = "firmware"
	UIIconDiagnostics     UIIcon = "diagnostics"
	UIIconAppSettings     UIIcon = "app_settings"
	UIIconConnected       UIIcon = "connected"
	UIIconDisconnected    UIIcon = "disconnected"
	UIIconUpdateAvailable UIIcon = "update_available"
)

var allUIIcons = []UIIcon{
	UIIconTelemetry,
	UIIconDevice,
	UIIconFirmware,
	UIIconDiagnostics,
	UIIconAppSettings,
	UIIconConnected,
	UIIconDisconnected,
	UIIconUpdateAvailable,
}

var (
	uiDarkIconResources  = loadUIIcons("dark")
	uiLightIconResources = loadUIIcons("light")
)

var appIconResources = map[fyne.ThemeVariant]fyne.Resource{
	theme.VariantDark:  mustLoad("ui/dark/icon_64.png"),
	theme.VariantLight: mustLoad("ui/light/icon_64.png"),
}

var trayIconResources = map[fyne.ThemeVariant]fyne.Resource{
	theme.VariantDark:  mustLoad("ui/dark/icon_32.png"),
	theme.VariantLight: mustLoad("ui/light/icon_32.png"),
}

func loadUIIcons(variant string) map[UIIcon]fyne.Resource {
	icons := make(map[UIIcon]fyne.Resource, len(allUIIcons))
	for _, icon := range allUIIcons {
		icons[icon] = mustLoad(path.Join("ui", variant, string(icon)+".svg"))
	}

	return icons
}

func mustLoad(name string) fyne.Resource {
	raw, err := assets.ReadFile(name)
	if err != nil {
		panic("missing embedded resource " + name + ": " + err.Error())
	}

	return fyne.NewStaticResource("resources/"+name, raw)
}

func UIIconResource(icon UIIcon, variant fyne.ThemeVariant) fyne.Resource {
	if variant == theme.VariantLight {
		if res, ok := uiLightIconResources[icon]; ok {
			return res
		}
	}
	if res, ok := uiDarkIconResources[icon]; ok {
		return res
	}

	return nil
}

func AppIconResource(variant fyne.ThemeVariant) fyne.Resource {
	if res, ok := appIconResources[variant]; ok {
		return res
	}

	return appIconResources[theme.VariantDark]
}

func TrayIconResource(variant fyne.ThemeVariant) fyne.Resource {
	if res, ok := trayIconResources[variant]; ok {
		return res
	}

	return trayIconResources[theme.VariantDark]
}
