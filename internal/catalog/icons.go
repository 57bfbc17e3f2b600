package catalog

// Icon is a renderable symbol for an application.
type Icon struct {
	Key   string
	Glyph string
}

// FallbackIcon is used for keys missing from the icon table.
var FallbackIcon = Icon{Key: "box", Glyph: "▣"}

var icons = map[string]Icon{
	"activity":    {Key: "activity", Glyph: "∿"},
	"stethoscope": {Key: "stethoscope", Glyph: "⚕"},
	"shield":      {Key: "shield", Glyph: "⛨"},
	"pill":        {Key: "pill", Glyph: "℞"},
	"users":       {Key: "users", Glyph: "☺"},
	"building":    {Key: "building", Glyph: "⌂"},
	"box":         FallbackIcon,
}

// IconFor returns the icon registered under key or FallbackIcon.
func IconFor(key string) Icon {
	if icon, ok := icons[key]; ok {
		return icon
	}
	return FallbackIcon
}

// FallbackColor is used for unknown color keys.
const FallbackColor = "#64748b"

var colors = map[string]string{
	"blue":   "#3b82f6",
	"green":  "#22c55e",
	"purple": "#a855f7",
	"orange": "#f97316",
	"yellow": "#eab308",
	"pink":   "#ec4899",
	"teal":   "#14b8a6",
	"indigo": "#6366f1",
}

// ColorFor returns the hex color for key or FallbackColor.
func ColorFor(key string) string {
	if c, ok := colors[key]; ok {
		return c
	}
	return FallbackColor
}
