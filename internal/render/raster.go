package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"academyCards/internal/card"
)

var placeholderColor = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}

// Rasterizer 把已解析的卡片绘制成 PNG。字体文件按 <fontsDir>/<Family>[-Bold].ttf 查找，
// 找不到时退回内置点阵字体。
type Rasterizer struct {
	logger   *slog.Logger
	fontsDir string

	mu    sync.Mutex
	faces map[string]font.Face
}

func NewRasterizer(logger *slog.Logger, fontsDir string) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{
		logger:   logger,
		fontsDir: fontsDir,
		faces:    make(map[string]font.Face),
	}
}

// PNG draws c. The card itself is not modified.
func (r *Rasterizer) PNG(c *Card) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("rasterize card: nil card")
	}
	width := int(math.Ceil(c.Width))
	height := int(math.Ceil(c.Height))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("rasterize card: invalid size %dx%d", width, height)
	}

	// truetype 字体面不可并发使用，缓存与绘制共用一把锁。
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	if bg := c.Background; bg != nil {
		if err := r.drawBackground(dc, bg, c.Width); err != nil {
			r.logger.Warn("draw background failed", slog.String("template_id", c.TemplateID), slog.Any("error", err))
		}
	}

	for _, el := range c.Elements {
		var err error
		switch {
		case el.Style != nil:
			r.drawText(dc, el)
		case el.Image != "":
			err = r.drawImage(dc, el)
		case el.Placeholder:
			dc.SetColor(placeholderColor)
			dc.DrawRectangle(el.X, el.Y, el.Width, el.Height)
			dc.Fill()
		}
		if err != nil {
			r.logger.Warn("draw field failed",
				slog.String("template_id", c.TemplateID),
				slog.String("field_id", el.FieldID),
				slog.Any("error", err),
			)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeImage(uri string) (image.Image, error) {
	_, data, err := DecodeDataURI(uri)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func (r *Rasterizer) drawBackground(dc *gg.Context, bg *Background, cardWidth float64) error {
	img, err := decodeImage(bg.Image)
	if err != nil {
		return err
	}
	w := int(math.Round(cardWidth * bg.ScalePercent / 100))
	if w <= 0 {
		return nil
	}
	img = imaging.Resize(img, w, 0, imaging.Lanczos)
	dc.DrawImage(img, int(math.Round(bg.X)), int(math.Round(bg.Y)))
	return nil
}

func (r *Rasterizer) drawImage(dc *gg.Context, el Element) error {
	img, err := decodeImage(el.Image)
	if err != nil {
		return err
	}
	w := int(math.Round(el.Width))
	h := int(math.Round(el.Height))
	if w <= 0 || h <= 0 {
		return nil
	}

	var fitted image.Image
	if el.Kind == card.KindQRCode {
		fitted = imaging.Fit(img, w, h, imaging.NearestNeighbor)
		// 居中放置
		x := int(math.Round(el.X)) + (w-fitted.Bounds().Dx())/2
		y := int(math.Round(el.Y)) + (h-fitted.Bounds().Dy())/2
		dc.DrawImage(fitted, x, y)
		return nil
	}

	scale := el.ImageScale
	sw := int(math.Round(float64(w) * scale))
	sh := int(math.Round(float64(h) * scale))
	if sw <= 0 || sh <= 0 {
		return nil
	}
	fitted = imaging.Fill(img, sw, sh, imaging.Center, imaging.Lanczos)
	if scale > 1 {
		fitted = imaging.CropCenter(fitted, w, h)
	}
	x := int(math.Round(el.X)) + (w-fitted.Bounds().Dx())/2
	y := int(math.Round(el.Y)) + (h-fitted.Bounds().Dy())/2
	dc.DrawImage(fitted, x, y)
	return nil
}

func (r *Rasterizer) drawText(dc *gg.Context, el Element) {
	style := *el.Style
	dc.Push()
	defer dc.Pop()

	dc.DrawRectangle(el.X, el.Y, el.Width, el.Height)
	dc.Clip()

	dc.SetFontFace(r.face(style, el.FontSizePx))
	dc.SetHexColor(style.Color)

	ax, x := 1.0, el.X+el.Width
	switch style.Align {
	case card.AlignLeft:
		ax, x = 0, el.X
	case card.AlignCenter:
		ax, x = 0.5, el.X+el.Width/2
	}
	dc.DrawStringAnchored(el.Text, x, el.Y+el.Height/2, ax, 0.5)
	dc.ResetClip()
}

func (r *Rasterizer) face(style card.TextStyle, sizePx float64) font.Face {
	name := style.FontFamily
	if style.FontWeight == card.WeightBold {
		name += "-Bold"
	}
	key := fmt.Sprintf("%s@%.2f", name, sizePx)
	if f, ok := r.faces[key]; ok {
		return f
	}

	var f font.Face = basicfont.Face7x13
	if r.fontsDir != "" && sizePx > 0 {
		path := filepath.Join(r.fontsDir, name+".ttf")
		if _, err := os.Stat(path); err == nil {
			loaded, err := gg.LoadFontFace(path, sizePx)
			if err != nil {
				r.logger.Warn("load font failed", slog.String("path", path), slog.Any("error", err))
			} else {
				f = loaded
			}
		}
	}
	r.faces[key] = f
	return f
}
