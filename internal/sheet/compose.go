package sheet

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"

	"academyCards/internal/card"
	"academyCards/internal/metrics"
	"academyCards/internal/render"
)

// Cell 是纸张上一个已占用的格子。
type Cell struct {
	Placement
	RecordID string        `json:"record_id"`
	Result   render.Result `json:"result"`
}

// Sheet 是一页排好的卡片。
type Sheet struct {
	Layout Layout `json:"layout"`
	Cells  []Cell `json:"cells"`
}

// Composer 将选中的记录渲染后按行优先放入网格。
type Composer struct {
	logger   *slog.Logger
	renderer *render.Renderer
}

func NewComposer(logger *slog.Logger, renderer *render.Renderer) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{logger: logger, renderer: renderer}
}

// Compose renders every record with its category's template. Records whose
// category has no template occupy their cell in the no-template state.
func (c *Composer) Compose(ctx context.Context, templates map[card.Category]*card.Template, records []card.Record, layout Layout) (*Sheet, error) {
	if len(records) > layout.Capacity {
		return nil, fmt.Errorf("compose sheet: %w (%d cards, capacity %d)", ErrCapacityExceeded, len(records), layout.Capacity)
	}

	placements := layout.Placements(len(records))
	out := &Sheet{Layout: layout, Cells: make([]Cell, len(records))}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("compose sheet: %w", err)
		}
		// 打印时按 1:1 渲染，卡片像素尺寸与 CSS 毫米一致。
		res := c.renderer.Render(ctx, templates[rec.Category], rec, 1)
		if res.NoTemplate() {
			c.logger.Warn("no template for category, leaving cell empty",
				slog.String("category", string(rec.Category)),
				slog.String("record_id", rec.ID()),
			)
		}
		out.Cells[i] = Cell{Placement: placements[i], RecordID: rec.ID(), Result: res}
	}
	metrics.ObserveSheet(len(records))
	return out, nil
}

// ComposeSelection is Compose over a Selection's current records.
func (c *Composer) ComposeSelection(ctx context.Context, templates map[card.Category]*card.Template, sel *Selection) (*Sheet, error) {
	return c.Compose(ctx, templates, sel.Records(), sel.Layout())
}

const sheetDocument = `<!DOCTYPE html>
<html lang="ar" dir="rtl">
<head>
<meta charset="UTF-8">
<style>
  @page { size: {{mm .Layout.Settings.SheetWidthMM}} {{mm .Layout.Settings.SheetHeightMM}}; margin: 0; }
  html, body { margin: 0; padding: 0; background: #ffffff; }
  .sheet {
    width: {{mm .Layout.Settings.SheetWidthMM}};
    height: {{mm .Layout.Settings.SheetHeightMM}};
    padding: {{mm .Layout.Settings.MarginMM}};
    box-sizing: border-box;
    direction: ltr;
    display: grid;
    grid-template-columns: repeat({{.Layout.Columns}}, {{mm .Layout.Settings.CardWidthMM}});
    grid-auto-rows: {{mm .Layout.Settings.CardHeightMM}};
    gap: {{mm .Layout.Settings.SpacingMM}};
    overflow: hidden;
  }
  .slot { width: {{mm .Layout.Settings.CardWidthMM}}; height: {{mm .Layout.Settings.CardHeightMM}}; overflow: hidden; }
  .field-placeholder { background: #e5e7eb; border: 1px dashed #9ca3af; box-sizing: border-box; }
  .no-template { width: 100%; height: 100%; border: 1px dashed #d1d5db; box-sizing: border-box; }
</style>
</head>
<body>
<div class="sheet">
{{- range .Cells}}
  <div class="slot" data-record="{{.RecordID}}" style="grid-column: {{add1 .Column}}; grid-row: {{add1 .Row}};">
  {{- if .Result.Card}}
    {{template "card" .Result.Card}}
  {{- else}}
    <div class="no-template"></div>
  {{- end}}
  </div>
{{- end}}
</div>
</body>
</html>
`

var sheetTemplate = template.Must(template.Must(render.CardTemplate.Clone()).Funcs(template.FuncMap{
	"mm":   func(v float64) template.CSS { return template.CSS(fmt.Sprintf("%.2fmm", v)) },
	"add1": func(v int) int { return v + 1 },
}).New("sheet").Parse(sheetDocument))

// WriteHTML writes a self-contained printable document for s.
func WriteHTML(w io.Writer, s *Sheet) error {
	if s == nil {
		return fmt.Errorf("write sheet html: nil sheet")
	}
	if err := sheetTemplate.ExecuteTemplate(w, "sheet", s); err != nil {
		return fmt.Errorf("write sheet html: %w", err)
	}
	return nil
}

// HTML 返回整页 HTML 字符串。
func (s *Sheet) HTML() (string, error) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}
