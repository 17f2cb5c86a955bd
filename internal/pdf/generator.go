package pdf

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const mmPerInch = 25.4

// PageSize 是纸张尺寸（毫米）。
type PageSize struct {
	WidthMM  float64
	HeightMM float64
}

// Generator 把 HTML 文档转成 PDF，worker 与测试通过该接口注入实现。
type Generator interface {
	GeneratePDF(ctx context.Context, html string, size PageSize) ([]byte, error)
}

// Chromium 使用 go-rod 启动无头浏览器生成 PDF。
type Chromium struct {
	Timeout time.Duration
}

func NewChromium() *Chromium {
	return &Chromium{Timeout: 30 * time.Second}
}

// GeneratePDF 在无头浏览器中渲染 HTML 并返回 PDF 字节。
func (g *Chromium) GeneratePDF(ctx context.Context, htmlContent string, size PageSize) ([]byte, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	launch := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().Context(ctx).ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Timeout(timeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	page = page.Timeout(timeout)
	if err := page.SetDocumentContent(htmlContent); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	req := &proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	}
	if size.WidthMM > 0 && size.HeightMM > 0 {
		w, h := size.WidthMM/mmPerInch, size.HeightMM/mmPerInch
		zero := 0.0
		req.PaperWidth = &w
		req.PaperHeight = &h
		req.MarginTop, req.MarginBottom, req.MarginLeft, req.MarginRight = &zero, &zero, &zero, &zero
	}

	reader, err := page.PDF(req)
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}

	return data, nil
}
