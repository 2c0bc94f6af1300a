// Package render composes the card images the bot sends when dealing.
// Cards are drawn onto a theme-colored background with the card text
// centered; everything is generated in-process so no font or image
// assets ship with the binary.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"unicode/utf8"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cardWidth  = 1080
	cardHeight = 720

	accentBarHeight = 14
	margin          = 80

	// Text is rasterized at the bitmap face's native size and scaled up;
	// the clamp below shrinks the factor for very long cards.
	textScale = 4

	maxLineRunes = 30
	maxLines     = 12
)

type palette struct {
	bg     color.RGBA
	fg     color.RGBA
	accent color.RGBA
}

var themePalettes = map[string]palette{
	"acquaintance": {
		bg:     color.RGBA{245, 239, 230, 255},
		fg:     color.RGBA{43, 41, 38, 255},
		accent: color.RGBA{196, 93, 74, 255},
	},
	"icebreakers": {
		bg:     color.RGBA{227, 240, 247, 255},
		fg:     color.RGBA{35, 48, 60, 255},
		accent: color.RGBA{58, 130, 180, 255},
	},
	"after-dark": {
		bg:     color.RGBA{24, 20, 28, 255},
		fg:     color.RGBA{235, 230, 240, 255},
		accent: color.RGBA{150, 60, 90, 255},
	},
}

var defaultPalette = palette{
	bg:     color.RGBA{240, 240, 238, 255},
	fg:     color.RGBA{40, 40, 42, 255},
	accent: color.RGBA{104, 104, 114, 255},
}

func paletteFor(theme string) palette {
	if p, ok := themePalettes[theme]; ok {
		return p
	}
	return defaultPalette
}

// CardImage renders the card text onto the theme's background and
// returns it PNG-encoded.
func CardImage(theme, text string) ([]byte, error) {
	lines := wrap(text, maxLineRunes)
	if len(lines) == 0 {
		return nil, fmt.Errorf("card text is empty")
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] += " …"
	}

	pal := paletteFor(theme)

	canvas := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(pal.bg), image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, cardWidth, accentBarHeight), image.NewUniform(pal.accent), image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, cardHeight-accentBarHeight, cardWidth, cardHeight), image.NewUniform(pal.accent), image.Point{}, draw.Src)

	block := rasterize(lines, pal.fg)

	scale := textScale
	if m := (cardWidth - 2*margin) / block.Bounds().Dx(); m < scale {
		scale = m
	}
	if m := (cardHeight - 2*margin) / block.Bounds().Dy(); m < scale {
		scale = m
	}
	if scale < 1 {
		scale = 1
	}

	dstW := block.Bounds().Dx() * scale
	dstH := block.Bounds().Dy() * scale
	dst := image.Rect(
		(cardWidth-dstW)/2,
		(cardHeight-dstH)/2,
		(cardWidth-dstW)/2+dstW,
		(cardHeight-dstH)/2+dstH,
	)
	xdraw.NearestNeighbor.Scale(canvas, dst, block, block.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode card image: %w", err)
	}
	return buf.Bytes(), nil
}

// rasterize draws the wrapped lines at the bitmap face's native size,
// each line centered against the widest one.
func rasterize(lines []string, fg color.RGBA) *image.RGBA {
	face := basicfont.Face7x13
	lineHeight := face.Ascent + face.Descent + 3

	blockW := 1
	for _, line := range lines {
		if w := font.MeasureString(face, line).Ceil(); w > blockW {
			blockW = w
		}
	}
	blockH := lineHeight * len(lines)

	block := image.NewRGBA(image.Rect(0, 0, blockW, blockH))
	drawer := &font.Drawer{
		Dst:  block,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	for i, line := range lines {
		w := font.MeasureString(face, line).Ceil()
		drawer.Dot = fixed.P((blockW-w)/2, face.Ascent+i*lineHeight)
		drawer.DrawString(line)
	}
	return block
}

// wrap splits text into lines of at most limit runes, breaking on
// spaces. A single word longer than the limit stays on its own line.
func wrap(text string, limit int) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if utf8.RuneCountInString(candidate) > limit && current != "" {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
