package monet

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dotos-lab/sysuid/internal/model"
)

const (
	whiteLuminanceMin     = 1.0
	whiteLuminanceMax     = 10000.0
	whiteLuminanceUserMax = 1000

	// DefaultChroma and DefaultLightness apply when settings carry no value.
	DefaultChroma    = 1.0
	DefaultLightness = 425
)

// Shades generated for every tonal palette.
var Shades = []int{0, 10, 50, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}

// Target chroma per palette, in CIE LCh units scaled to go-colorful's range.
const (
	accent1Chroma = 0.48
	accent2Chroma = 0.16
	accent3Chroma = 0.24
	neutralChroma = 0.04
	accent3Shift  = 60.0
)

// Tonal maps a shade (0 lightest, 1000 darkest) to a color.
type Tonal map[int]colorful.Color

// Scheme is the dynamic color scheme for one seed. Accent2 and Accent3 are
// nil for achromatic seeds.
type Scheme struct {
	Accent1  Tonal
	Accent2  Tonal
	Accent3  Tonal
	Neutral1 Tonal
}

// WhiteLuminance maps the user lightness setting (0..1000) to a white
// luminance in cd/m2; higher settings give a dimmer white. Fractional
// settings are allowed.
func WhiteLuminance(user float64) float64 {
	src := user / whiteLuminanceUserMax
	inv := 1.0 - src
	return math.Max(math.Pow(10, inv*math.Log10(whiteLuminanceMax)), whiteLuminanceMin)
}

// NewScheme builds the tonal palettes around seed. chroma multiplies every
// palette's target chroma; whiteLuminance shifts the lightness curve.
func NewScheme(seed colorful.Color, chroma, whiteLuminance float64) Scheme {
	h, c, _ := seed.Hcl()
	gamma := lightnessGamma(whiteLuminance)

	s := Scheme{
		Accent1:  tonal(h, math.Max(c, accent1Chroma)*chroma, gamma),
		Neutral1: tonal(h, neutralChroma*chroma, gamma),
	}
	if c >= minChroma {
		s.Accent2 = tonal(h, accent2Chroma*chroma, gamma)
		s.Accent3 = tonal(math.Mod(h+accent3Shift, 360), accent3Chroma*chroma, gamma)
	}
	return s
}

// lightnessGamma bends the shade curve relative to the default setting.
func lightnessGamma(whiteLuminance float64) float64 {
	ref := 1 + math.Log10(WhiteLuminance(DefaultLightness))
	g := ref / (1 + math.Log10(math.Max(whiteLuminance, whiteLuminanceMin)))
	return math.Min(math.Max(g, 0.5), 2)
}

func tonal(hue, chroma, gamma float64) Tonal {
	t := make(Tonal, len(Shades))
	for _, shade := range Shades {
		l := math.Pow(1-float64(shade)/1000, gamma)
		// Full chroma is out of gamut at the extremes.
		c := chroma * math.Sin(math.Pi*l)
		t[shade] = colorful.Hcl(hue, c, l).Clamped()
	}
	return t
}

// Palette extracts the settings colors from the scheme.
func (s Scheme) Palette() model.Palette {
	p := model.Palette{
		Accent:                   ARGB(s.Accent1[100]),
		AccentLight:              ARGB(s.Accent1[500]),
		Background:               ARGB(s.Neutral1[900]),
		BackgroundLight:          ARGB(s.Neutral1[50]),
		BackgroundSecondary:      ARGB(s.Neutral1[700]),
		BackgroundSecondaryLight: ARGB(s.Neutral1[100]),
		AccentSecondary:          -1,
		AccentSecondaryLight:     -1,
		AccentTertiary:           -1,
		AccentTertiaryLight:      -1,
	}
	if s.Accent2 != nil {
		p.AccentSecondary = ARGB(s.Accent2[100])
		p.AccentSecondaryLight = ARGB(s.Accent2[500])
	}
	if s.Accent3 != nil {
		p.AccentTertiary = ARGB(s.Accent3[100])
		p.AccentTertiaryLight = ARGB(s.Accent3[500])
	}
	return p
}
