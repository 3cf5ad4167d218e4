// Package avatar draws letter avatars: a 100×100 square in one of four
// colors with a centered white capital letter.
package avatar

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Size is the avatar's width and height in pixels.
const Size = 100

// Palette holds the background colors an avatar may get.
var Palette = []color.RGBA{
	{R: 0x32, G: 0xa8, B: 0x52, A: 0xff},
	{R: 0xa8, G: 0x36, B: 0x32, A: 0xff},
	{R: 0x32, G: 0xa8, B: 0xa6, A: 0xff},
	{R: 0x4e, G: 0x32, B: 0xa8, A: 0xff},
}

var ErrEmptyUsername = errors.New("avatar: empty username")

// Generator renders avatars. The background is picked at random on every
// call, so output is not reproducible; generate once and store the result.
//
// A font.Face may keep internal caches, so rendering is serialized.
type Generator struct {
	mu   sync.Mutex
	face font.Face
	pick func(n int) int
}

func New() (*Generator, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("avatar: parsing font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    Size / 2,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("avatar: creating face: %w", err)
	}
	return &Generator{face: face, pick: rand.IntN}, nil
}

// Generate returns a PNG showing the uppercase form of letter.
func (g *Generator) Generate(letter rune) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))

	g.mu.Lock()
	defer g.mu.Unlock()

	bg := Palette[g.pick(len(Palette))]
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	text := string(unicode.ToUpper(letter))
	bounds, _ := font.BoundString(g.face, text)
	size := fixed.I(Size)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: g.face,
		// Center the glyph's ink box, not its advance box.
		Dot: fixed.Point26_6{
			X: (size-(bounds.Max.X-bounds.Min.X))/2 - bounds.Min.X,
			Y: (size-(bounds.Max.Y-bounds.Min.Y))/2 - bounds.Min.Y,
		},
	}
	d.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("avatar: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI renders letter and wraps the PNG as a data URI for <img src>.
func (g *Generator) DataURI(letter rune) (string, error) {
	b, err := g.Generate(letter)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b), nil
}

// ForUsername renders the avatar for a username from its first character.
func (g *Generator) ForUsername(username string) (string, error) {
	first, _ := utf8.DecodeRuneInString(username)
	if first == utf8.RuneError {
		return "", ErrEmptyUsername
	}
	return g.DataURI(first)
}
