package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pdf/fpdf"

	"construction-monitor/internal/shared/telemetry"
)

// Basic lays the report DOM out with fpdf core fonts. It needs no browser and
// ignores CSS beyond the class names the report template uses.
type Basic struct{}

// NewBasic creates the browser-free engine.
func NewBasic() *Basic { return &Basic{} }

func (b *Basic) Close() error { return nil }

// Render parses html and writes the header, sections, tables, lists and footer in document order.
func (b *Basic) Render(ctx context.Context, html string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, renderErr(EngineBasic, err)
	}
	start := time.Now()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, renderErr(EngineBasic, fmt.Errorf("parse html: %w", err))
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return nil, renderErr(EngineBasic, fmt.Errorf("document has no body"))
	}

	p := fpdf.New("P", "mm", "A4", "")
	p.SetMargins(12, 12, 12)
	p.SetAutoPageBreak(true, 12)
	p.SetTitle(normalizeSpace(doc.Find("title").Text()), true)
	p.SetCreator("construction-monitor", true)
	p.AddPage()

	r := &basicRenderer{pdf: p, tr: p.UnicodeTranslatorFromDescriptor("")}
	body.Children().Each(func(_ int, s *goquery.Selection) {
		switch {
		case s.HasClass("header"):
			r.header(s)
		case s.HasClass("section"):
			r.section(s)
		case s.HasClass("footer"):
			r.footer(s)
		default:
			r.paragraph(normalizeSpace(s.Text()))
		}
	})

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, renderErr(EngineBasic, err)
	}

	telemetry.Info("pdf.render.ok", map[string]any{
		"engine":      EngineBasic,
		"bytes":       buf.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return buf.Bytes(), nil
}

type basicRenderer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

const lineHeight = 5.0

func (r *basicRenderer) header(s *goquery.Selection) {
	r.pdf.SetFillColor(102, 126, 234)
	r.pdf.SetTextColor(255, 255, 255)
	r.pdf.SetFont("Helvetica", "B", 16)
	r.pdf.MultiCell(0, 9, r.tr(normalizeSpace(s.Find("h1").First().Text())), "", "L", true)

	r.pdf.SetFont("Helvetica", "", 9)
	s.Find(".info-item").Each(func(_ int, item *goquery.Selection) {
		label := normalizeSpace(item.Find(".info-label").Text())
		value := normalizeSpace(strings.TrimPrefix(normalizeSpace(item.Text()), label))
		r.pdf.MultiCell(0, lineHeight+1, r.tr(label+" "+value), "", "L", true)
	})
	r.pdf.SetTextColor(51, 51, 51)
	r.pdf.Ln(4)
}

func (r *basicRenderer) section(s *goquery.Selection) {
	r.pdf.SetFont("Helvetica", "B", 13)
	r.pdf.SetTextColor(102, 126, 234)
	r.pdf.MultiCell(0, 8, r.tr(normalizeSpace(s.Find("h2").First().Text())), "B", "L", false)
	r.pdf.SetTextColor(51, 51, 51)
	r.pdf.Ln(2)

	s.Children().Each(func(_ int, child *goquery.Selection) {
		switch {
		case goquery.NodeName(child) == "h2":
		case goquery.NodeName(child) == "table":
			r.table(child)
		case goquery.NodeName(child) == "ul":
			child.Find("li").Each(func(_ int, li *goquery.Selection) {
				r.pdf.SetFont("Helvetica", "", 10)
				r.pdf.MultiCell(0, lineHeight+1, r.tr("- "+normalizeSpace(li.Text())), "", "L", false)
			})
		case child.HasClass("progress-box"):
			r.pdf.SetFont("Helvetica", "B", 22)
			r.pdf.CellFormat(0, 12, r.tr(normalizeSpace(child.Find(".progress-value").Text())), "", 1, "C", false, 0, "")
			r.pdf.SetFont("Helvetica", "", 9)
			r.pdf.CellFormat(0, lineHeight, r.tr(normalizeSpace(child.Find(".progress-label").Text())), "", 1, "C", false, 0, "")
		case child.HasClass("comparison-grid"):
			var cells []string
			child.Find(".comparison-card").Each(func(_ int, card *goquery.Selection) {
				cells = append(cells, normalizeSpace(card.Find(".value").Text())+"\n"+normalizeSpace(card.Find(".label").Text()))
			})
			r.pdf.SetFont("Helvetica", "", 9)
			r.row(cells, false)
		default:
			r.paragraph(normalizeSpace(child.Text()))
		}
	})
	r.pdf.Ln(5)
}

func (r *basicRenderer) footer(s *goquery.Selection) {
	r.pdf.Ln(4)
	r.pdf.SetFont("Helvetica", "I", 8)
	r.pdf.SetTextColor(108, 117, 125)
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		r.pdf.CellFormat(0, lineHeight, r.tr(normalizeSpace(p.Text())), "", 1, "C", false, 0, "")
	})
}

func (r *basicRenderer) paragraph(text string) {
	if text == "" {
		return
	}
	r.pdf.SetFont("Helvetica", "", 10)
	r.pdf.MultiCell(0, lineHeight+1, r.tr(text), "", "L", false)
	r.pdf.Ln(1)
}

func (r *basicRenderer) table(t *goquery.Selection) {
	var head []string
	t.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		head = append(head, normalizeSpace(th.Text()))
	})
	if len(head) > 0 {
		r.pdf.SetFont("Helvetica", "B", 8)
		r.pdf.SetFillColor(102, 126, 234)
		r.pdf.SetTextColor(255, 255, 255)
		r.row(head, true)
		r.pdf.SetTextColor(51, 51, 51)
	}

	r.pdf.SetFont("Helvetica", "", 8)
	t.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, normalizeSpace(td.Text()))
		})
		r.row(cells, false)
	})
	r.pdf.Ln(2)
}

// row draws equal-width cells sized to the tallest wrapped cell.
func (r *basicRenderer) row(cells []string, fill bool) {
	if len(cells) == 0 {
		return
	}
	pageW, pageH := r.pdf.GetPageSize()
	left, _, right, bottom := r.pdf.GetMargins()
	width := (pageW - left - right) / float64(len(cells))

	lines := 1
	translated := make([]string, len(cells))
	for i, c := range cells {
		translated[i] = r.tr(c)
		if n := len(r.pdf.SplitText(translated[i], width-2)); n > lines {
			lines = n
		}
	}
	height := float64(lines)*lineHeight + 2

	if r.pdf.GetY()+height > pageH-bottom {
		r.pdf.AddPage()
	}
	x0, y0 := r.pdf.GetXY()
	style := "D"
	if fill {
		style = "FD"
	}
	r.pdf.SetDrawColor(233, 236, 239)
	for i, c := range translated {
		x := x0 + float64(i)*width
		r.pdf.Rect(x, y0, width, height, style)
		r.pdf.SetXY(x+1, y0+1)
		r.pdf.MultiCell(width-2, lineHeight, c, "", "L", false)
	}
	r.pdf.SetXY(x0, y0+height)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ Generator = (*Basic)(nil)
