package services

import (
	"bytes"
	"fmt"
	"image/color"
	"math/rand"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
)

// QuoteCardService renders pull-quote PNGs for the generated content flow.
type QuoteCardService interface {
	Render(quote string, attribution string) (bytes.Buffer, error)
}

type quoteCardService struct {
	log *logger.Logger

	bgColors []color.NRGBA

	quoteFace font.Face
	attrFace  font.Face
}

func NewQuoteCardService(baseLog *logger.Logger) (QuoteCardService, error) {
	serviceLog := baseLog.With("service", "QuoteCardService")

	fontPath := os.Getenv("QUOTECARD_FONT")
	if strings.TrimSpace(fontPath) == "" {
		return nil, fmt.Errorf("Env var QUOTECARD_FONT is empty")
	}
	serviceLog.Info("Loading quote card font", "font", fontPath)

	quoteFace, err := loadFontFace(fontPath, 54)
	if err != nil {
		return nil, fmt.Errorf("could not load quote font: %w", err)
	}
	attrFace, err := loadFontFace(fontPath, 32)
	if err != nil {
		return nil, fmt.Errorf("could not load attribution font: %w", err)
	}

	return &quoteCardService{
		log: serviceLog,
		bgColors: []color.NRGBA{
			{R: 0x1F, G: 0x29, B: 0x37, A: 0xFF},
			{R: 0x31, G: 0x1B, B: 0x4D, A: 0xFF},
			{R: 0x0F, G: 0x3D, B: 0x3E, A: 0xFF},
			{R: 0x3B, G: 0x0D, B: 0x11, A: 0xFF},
			{R: 0x1A, G: 0x2E, B: 0x05, A: 0xFF},
		},
		quoteFace: quoteFace,
		attrFace:  attrFace,
	}, nil
}

func (qs *quoteCardService) Render(quote string, attribution string) (bytes.Buffer, error) {
	var buf bytes.Buffer

	quote = strings.TrimSpace(quote)
	if quote == "" {
		return buf, fmt.Errorf("empty quote")
	}

	const size = 1080
	const margin = 120.0

	dc := gg.NewContext(size, size)

	base := qs.bgColors[rand.Intn(len(qs.bgColors))]
	dc.SetColor(base)
	dc.DrawRectangle(0, 0, float64(size), float64(size))
	dc.Fill()

	// Accent bar above the quote.
	dc.SetColor(color.NRGBA{R: 0xF5, G: 0x9E, B: 0x0B, A: 0xFF})
	dc.DrawRectangle(margin, margin, 96, 10)
	dc.Fill()

	dc.SetFontFace(qs.quoteFace)
	dc.SetColor(color.White)
	text := fmt.Sprintf("“%s”", quote)
	dc.DrawStringWrapped(text, margin, float64(size)/2, 0, 0.5, float64(size)-2*margin, 1.4, gg.AlignLeft)

	if attribution = strings.TrimSpace(attribution); attribution != "" {
		dc.SetFontFace(qs.attrFace)
		dc.SetColor(color.NRGBA{R: 0xD1, G: 0xD5, B: 0xDB, A: 0xFF})
		dc.DrawString("- "+attribution, margin, float64(size)-margin)
	}

	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	face := truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	return face, nil
}
