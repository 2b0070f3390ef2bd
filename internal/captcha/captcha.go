// Package captcha issues numeric image challenges that gate registration.
package captcha

import (
	"bytes"
	"crypto/subtle"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

const (
	defaultLength = 5
	defaultWidth  = 200
	defaultHeight = 80

	fontSize    = 36
	noiseLines  = 5
	noisePoints = 100
	jitterX     = 2
	jitterY     = 3
)

// Config controls challenge size.
type Config struct {
	Length int
	Width  int
	Height int
}

// Challenge is a freshly generated answer with its PNG rendering.
type Challenge struct {
	Answer string
	Image  []byte
}

// Option customizes a Generator.
type Option func(*Generator)

// WithSource makes generation deterministic, mainly for tests.
func WithSource(src rand.Source) Option {
	return func(g *Generator) {
		g.rng = rand.New(src)
	}
}

// withoutFont forces the bitmap fallback renderer.
func withoutFont() Option {
	return func(g *Generator) {
		g.face = nil
	}
}

// Generator is safe for concurrent use.
type Generator struct {
	cfg  Config
	log  *slog.Logger
	mu   sync.Mutex
	rng  *rand.Rand
	face font.Face
}

func NewGenerator(cfg Config, log *slog.Logger, opts ...Option) *Generator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Length <= 0 {
		cfg.Length = defaultLength
	}
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}

	seed := uint64(time.Now().UnixNano())
	g := &Generator{
		cfg: cfg,
		log: log,
		rng: rand.New(rand.NewPCG(seed, seed>>17|1)),
	}

	face, err := loadFace()
	if err != nil {
		log.Warn("captcha font unavailable, using bitmap fallback", slog.Any("error", err))
	} else {
		g.face = face
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func loadFace() (font.Face, error) {
	parsed, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Generate never fails: when PNG encoding breaks the challenge carries no image
// and callers still get a valid answer to compare against.
func (g *Generator) Generate() Challenge {
	g.mu.Lock()
	defer g.mu.Unlock()

	answer := g.answer()
	img := image.NewRGBA(image.Rect(0, 0, g.cfg.Width, g.cfg.Height))
	fill(img, color.White)
	g.drawNoise(img)

	if g.face != nil {
		g.drawText(img, answer)
	} else {
		g.drawFallbackText(img, answer)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		g.log.Error("captcha encode failed", slog.Any("error", err))
		return Challenge{Answer: answer}
	}

	return Challenge{Answer: answer, Image: buf.Bytes()}
}

// Verify compares a user reply with the expected answer, ignoring surrounding whitespace.
func Verify(candidate, answer string) bool {
	if answer == "" {
		return false
	}
	candidate = strings.TrimSpace(candidate)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(answer)) == 1
}

func (g *Generator) answer() string {
	var sb strings.Builder
	sb.Grow(g.cfg.Length)
	for i := 0; i < g.cfg.Length; i++ {
		sb.WriteByte(byte('0' + g.rng.IntN(10)))
	}
	return sb.String()
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) shade(lo, hi int) color.RGBA {
	return color.RGBA{
		R: uint8(g.between(lo, hi)),
		G: uint8(g.between(lo, hi)),
		B: uint8(g.between(lo, hi)),
		A: 0xff,
	}
}
