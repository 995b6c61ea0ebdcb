// Package monet derives theme colors from wallpaper pixels and publishes
// them to secure settings.
package monet

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	hueBuckets   = 36
	maxSamples   = 1 << 16
	minChroma    = 0.05
	minShare     = 0.05
	maxCandidate = 4
)

// Load decodes a wallpaper image.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wallpaper: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode wallpaper %s: %w", path, err)
	}
	return img, nil
}

type bucket struct {
	hue     int
	count   int
	l, a, b float64
}

// Extract returns seed candidates ordered by how much of the image they
// cover. Chromatic pixels are grouped by hue; an image without any yields a
// single averaged, near-gray candidate.
func Extract(img image.Image) []colorful.Color {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return nil
	}
	step := int(math.Ceil(math.Sqrt(float64(total) / maxSamples)))
	if step < 1 {
		step = 1
	}

	buckets := make([]bucket, hueBuckets)
	for i := range buckets {
		buckets[i].hue = i
	}
	var grayL, grayA, grayB float64
	var chromatic, gray int

	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			l, a, b := c.Lab()
			h, chroma, _ := c.Hcl()
			if chroma < minChroma {
				gray++
				grayL += l
				grayA += a
				grayB += b
				continue
			}
			idx := int(h/360*hueBuckets) % hueBuckets
			bk := &buckets[idx]
			bk.count++
			bk.l += l
			bk.a += a
			bk.b += b
			chromatic++
		}
	}

	if chromatic == 0 {
		if gray == 0 {
			return nil
		}
		n := float64(gray)
		return []colorful.Color{colorful.Lab(grayL/n, grayA/n, grayB/n).Clamped()}
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].count > buckets[j].count
	})
	var out []colorful.Color
	for _, bk := range buckets {
		if bk.count == 0 || float64(bk.count)/float64(chromatic) < minShare {
			break
		}
		n := float64(bk.count)
		out = append(out, colorful.Lab(bk.l/n, bk.a/n, bk.b/n).Clamped())
		if len(out) == maxCandidate {
			break
		}
	}
	if len(out) == 0 {
		n := float64(buckets[0].count)
		out = append(out, colorful.Lab(buckets[0].l/n, buckets[0].a/n, buckets[0].b/n).Clamped())
	}
	return out
}

// ARGB packs c as an opaque signed ARGB integer.
func ARGB(c colorful.Color) int32 {
	r, g, b := c.Clamped().RGB255()
	return int32(uint32(0xFF)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// FromARGB unpacks a signed ARGB integer, ignoring alpha.
func FromARGB(v int32) colorful.Color {
	u := uint32(v)
	return colorful.Color{
		R: float64((u>>16)&0xFF) / 255,
		G: float64((u>>8)&0xFF) / 255,
		B: float64(u&0xFF) / 255,
	}
}

// Hex formats a signed ARGB integer as #rrggbb.
func Hex(v int32) string {
	return fmt.Sprintf("#%06X", uint32(v)&0xFFFFFF)
}
