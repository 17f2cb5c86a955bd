// Package render 把模板与人员记录绑定成可绘制的卡片：字段内容解析、二维码合成、
// 背景处理，以及 HTML / PNG 输出。渲染不会修改模板或字段。
package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"academyCards/internal/card"
	"academyCards/internal/errcode"
	"academyCards/internal/metrics"
	"academyCards/internal/units"
)

// State 区分渲染结果：正常卡片或"没有模板"终态。
type State string

const (
	StateCard       State = "card"
	StateNoTemplate State = "no-template"
)

// Result is either a drawable card or the no-template terminal state.
type Result struct {
	State State `json:"state"`
	Card  *Card `json:"card,omitempty"`
}

// NoTemplate reports whether the caller should offer to create a template.
func (r Result) NoTemplate() bool {
	return r.State == StateNoTemplate
}

// Warning 描述某个字段的局部失败（其余字段照常渲染）。
type Warning struct {
	Code    int    `json:"code"`
	FieldID string `json:"field_id,omitempty"`
	Message string `json:"message"`
}

// Background 是绘制在所有字段下方的背景图，不平铺。
type Background struct {
	Image string `json:"image"`
	// ScalePercent 为背景宽度相对卡片宽度的百分比。
	ScalePercent float64 `json:"scale_percent"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
}

// Element 是一个已定位的绘制指令。坐标与尺寸都是像素（已乘以显示缩放）。
type Element struct {
	FieldID    string            `json:"field_id"`
	Name       card.SemanticName `json:"name"`
	Kind       card.Kind         `json:"kind"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Text       string            `json:"text,omitempty"`
	Style      *card.TextStyle   `json:"style,omitempty"`
	FontSizePx float64           `json:"font_size_px,omitempty"`
	// Image 为 data URI；照片缺失时为空且 Placeholder 为 true，二维码失败时为空。
	Image       string  `json:"image,omitempty"`
	ImageScale  float64 `json:"image_scale,omitempty"`
	Placeholder bool    `json:"placeholder,omitempty"`
}

// Card 是一张已解析的卡片。
type Card struct {
	TemplateID   string        `json:"template_id"`
	TemplateName string        `json:"template_name"`
	Category     card.Category `json:"category"`
	RecordID     string        `json:"record_id"`
	Scale        float64       `json:"scale"`
	Width        float64       `json:"width"`
	Height       float64       `json:"height"`
	Background   *Background   `json:"background,omitempty"`
	Elements     []Element     `json:"elements"`
	Warnings     []Warning     `json:"warnings,omitempty"`
}

// AssetResolver 把对象存储 key 解析成 data URI（照片、背景图）。
type AssetResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Options configures a Renderer.
type Options struct {
	Locale   string
	QRSizePx int
	Assets   AssetResolver
	Encoder  QREncoder
	Now      func() time.Time
}

// Renderer 是无状态的渲染器，可并发使用。
type Renderer struct {
	logger   *slog.Logger
	locale   Locale
	qrSize   int
	assets   AssetResolver
	encodeQR QREncoder
	now      func() time.Time
}

func NewRenderer(logger *slog.Logger, opts Options) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QRSizePx <= 0 {
		opts.QRSizePx = 256
	}
	if opts.Encoder == nil {
		opts.Encoder = EncodeQRCode
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Locale == "" {
		opts.Locale = "ar"
	}
	return &Renderer{
		logger:   logger,
		locale:   NewLocale(opts.Locale),
		qrSize:   opts.QRSizePx,
		assets:   opts.Assets,
		encodeQR: opts.Encoder,
		now:      opts.Now,
	}
}

// Render binds tpl to rec at the given display scale. A nil template yields
// the no-template state. Field-level failures (QR synthesis, missing assets)
// are logged and attached as warnings; the rest of the card still renders.
func (r *Renderer) Render(ctx context.Context, tpl *card.Template, rec card.Record, scale float64) Result {
	if tpl == nil {
		metrics.ObserveRender(string(rec.Category), string(StateNoTemplate))
		return Result{State: StateNoTemplate}
	}
	if scale <= 0 {
		scale = 1
	}

	log := r.logger.With(
		slog.String("template_id", tpl.ID),
		slog.String("record_id", rec.ID()),
	)

	c := &Card{
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		Category:     tpl.Category,
		RecordID:     rec.ID(),
		Scale:        scale,
		Width:        units.MMToPx(tpl.Width) * scale,
		Height:       units.MMToPx(tpl.Height) * scale,
		Elements:     make([]Element, len(tpl.Fields)),
	}

	var (
		mu       sync.Mutex
		warnings []Warning
	)
	warn := func(w Warning) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	}

	if tpl.BackgroundImage != "" {
		image, err := r.resolveAsset(ctx, tpl.BackgroundImage)
		if err != nil {
			log.Warn("resolve background image failed", slog.Any("error", err))
			metrics.ObserveFieldFailure("background")
			warn(Warning{Code: errcode.ResourceMissing, Message: "background image unavailable"})
		} else {
			c.Background = &Background{
				Image:        image,
				ScalePercent: tpl.BackgroundImageScale,
				X:            units.MMToPx(tpl.BackgroundImageX) * scale,
				Y:            units.MMToPx(tpl.BackgroundImageY) * scale,
			}
		}
	}

	// 二维码生成可能较慢：并发合成，失败只影响对应字段。
	g, gctx := errgroup.WithContext(ctx)
	now := r.now()
	qrImages := make([]string, len(tpl.Fields))
	for i, f := range tpl.Fields {
		el := Element{
			FieldID: f.ID,
			Name:    f.Name,
			Kind:    f.Kind,
			X:       units.MMToPx(f.X) * scale,
			Y:       units.MMToPx(f.Y) * scale,
			Width:   units.MMToPx(f.Width) * scale,
			Height:  units.MMToPx(f.Height) * scale,
		}

		switch f.Kind {
		case card.KindText, card.KindDate, card.KindNumber:
			style := f.TextStyleOrDefault()
			el.Style = &style
			el.FontSizePx = style.FontSize * 96 / 72 * scale
			el.Text = FieldText(f, rec, r.locale, now)
		case card.KindImage:
			el.ImageScale = f.ImageScale()
			el.Placeholder = true
			if f.Name.IsPhoto() {
				if ref := rec.Photo(f.Name); ref != "" {
					image, err := r.resolveAsset(ctx, ref)
					if err != nil {
						log.Warn("resolve photo failed", slog.String("field_id", f.ID), slog.Any("error", err))
						metrics.ObserveFieldFailure(string(f.Kind))
						warn(Warning{Code: errcode.ResourceMissing, FieldID: f.ID, Message: "photo unavailable"})
					} else {
						el.Image = image
						el.Placeholder = false
					}
				}
			}
		case card.KindQRCode:
			idx, field := i, f
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return nil
				}
				image, err := qrDataURI(r.encodeQR, rec, r.qrSize)
				if err != nil {
					log.Error("generate qr code failed", slog.String("field_id", field.ID), slog.Any("error", err))
					metrics.ObserveFieldFailure(string(field.Kind))
					warn(Warning{Code: errcode.ResourceMissing, FieldID: field.ID, Message: "qr code generation failed"})
					return nil
				}
				// 各 goroutine 只写自己的下标，Wait 之后再合并。
				qrImages[idx] = image
				return nil
			})
		default:
			log.Warn("unknown field kind, rendering label", slog.String("kind", string(f.Kind)))
			el.Text = f.Label
		}
		c.Elements[i] = el
	}
	_ = g.Wait()
	for i, image := range qrImages {
		if image != "" {
			c.Elements[i].Image = image
		}
	}

	c.Warnings = warnings
	metrics.ObserveRender(string(tpl.Category), string(StateCard))
	return Result{State: StateCard, Card: c}
}

func (r *Renderer) resolveAsset(ctx context.Context, ref string) (string, error) {
	if IsDataURI(ref) {
		return ref, nil
	}
	if r.assets == nil {
		return "", fmt.Errorf("no asset resolver for %q", ref)
	}
	return r.assets.Resolve(ctx, ref)
}
