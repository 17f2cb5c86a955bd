package render

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"

	"academyCards/internal/card"
)

// cardFragment 与设计器画布一致：绝对定位、背景不平铺、文字从右到左。
const cardFragment = `{{define "card"}}<div class="id-card" dir="rtl" style="{{cardStyle .}}">
{{- range .Elements}}
  {{- if .Style}}
  <div class="field field-text" data-name="{{.Name}}" style="{{textStyle .}}">{{.Text}}</div>
  {{- else if .Image}}
  <div class="field field-image" data-name="{{.Name}}" style="{{boxStyle .}}"><img src="{{safeURL .Image}}" style="{{imageStyle .}}" alt="{{.Name}}"></div>
  {{- else if .Placeholder}}
  <div class="field field-placeholder" data-name="{{.Name}}" style="{{boxStyle .}}"></div>
  {{- else}}
  <div class="field field-empty" data-name="{{.Name}}" style="{{boxStyle .}}"></div>
  {{- end}}
{{- end}}
</div>{{end}}`

const cardDocument = `<!DOCTYPE html>
<html lang="ar" dir="rtl">
<head>
<meta charset="UTF-8">
<style>
  @page { size: {{printf "%.2f" .Card.Width}}px {{printf "%.2f" .Card.Height}}px; margin: 0; }
  body { margin: 0; padding: 0; }
  .field-placeholder { background: #e5e7eb; border: 1px dashed #9ca3af; box-sizing: border-box; }
</style>
</head>
<body>
{{template "card" .Card}}
</body>
</html>
`

var cardFuncs = template.FuncMap{
	"cardStyle":  cardStyle,
	"textStyle":  textStyle,
	"boxStyle":   boxStyle,
	"imageStyle": imageStyle,
	"safeURL":    safeURL,
}

// CardTemplate 是卡片片段模板，打印排版会在其上再定义整页文档。
var CardTemplate = template.Must(template.New("fragments").Funcs(cardFuncs).Parse(cardFragment))

var documentTemplate = template.Must(template.Must(CardTemplate.Clone()).New("document").Parse(cardDocument))

// WriteHTML writes c as a standalone HTML document sized to the card.
func WriteHTML(w io.Writer, c *Card) error {
	if c == nil {
		return fmt.Errorf("render html: nil card")
	}
	if err := documentTemplate.ExecuteTemplate(w, "document", struct{ Card *Card }{c}); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

func px(v float64) string {
	return fmt.Sprintf("%.2fpx", v)
}

func cardStyle(c *Card) template.CSS {
	var b strings.Builder
	fmt.Fprintf(&b, "position:relative;overflow:hidden;width:%s;height:%s;background-color:#ffffff;",
		px(c.Width), px(c.Height))
	if bg := c.Background; bg != nil && cssSafeURL(bg.Image) {
		fmt.Fprintf(&b, "background-image:url('%s');background-repeat:no-repeat;background-size:%.2f%% auto;background-position:%s %s;",
			bg.Image, bg.ScalePercent, px(bg.X), px(bg.Y))
	}
	return template.CSS(b.String())
}

func boxStyle(el Element) template.CSS {
	return template.CSS(fmt.Sprintf("position:absolute;left:%s;top:%s;width:%s;height:%s;",
		px(el.X), px(el.Y), px(el.Width), px(el.Height)))
}

func textStyle(el Element) template.CSS {
	style := card.DefaultTextStyle()
	if el.Style != nil && el.Style.Validate() == nil {
		style = *el.Style
	}
	justify := "flex-end"
	switch style.Align {
	case card.AlignLeft:
		justify = "flex-start"
	case card.AlignCenter:
		justify = "center"
	}
	// dir=rtl 下 flex-start 在右侧，这里按物理方向对齐。
	return template.CSS(fmt.Sprintf(
		"%sdisplay:flex;align-items:center;justify-content:%s;direction:ltr;white-space:nowrap;overflow:hidden;"+
			"font-family:'%s',sans-serif;font-size:%s;font-weight:%s;color:%s;text-align:%s;",
		boxStyle(el), justify, style.FontFamily, px(el.FontSizePx), style.FontWeight, style.Color, style.Align))
}

func imageStyle(el Element) template.CSS {
	if el.Kind == card.KindQRCode {
		return "width:100%;height:100%;object-fit:contain;"
	}
	// 缩放为 0 时图片收缩为空，只保留字段区域。
	scale := math.Max(el.ImageScale, 0)
	return template.CSS(fmt.Sprintf("width:100%%;height:100%%;object-fit:cover;transform:scale(%.3f);transform-origin:center;", scale))
}

// safeURL 只放行 data URI 与 http(s) 地址。
func safeURL(s string) template.URL {
	if cssSafeURL(s) {
		return template.URL(s)
	}
	return ""
}

func cssSafeURL(s string) bool {
	if !IsDataURI(s) && !strings.HasPrefix(s, "https://") && !strings.HasPrefix(s, "http://") {
		return false
	}
	return !strings.ContainsAny(s, "'\"()\\ \n<>")
}
