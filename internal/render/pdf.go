package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimetres (A4 portrait).
const (
	pdfMargin      = 15.0
	pdfLineHeight  = 5.5
	pdfMaxImageH   = 110.0
	pdfFooterSpace = 15.0
)

type rgb struct{ r, g, b int }

var statusColors = map[string]rgb{
	"status-pass":    {40, 167, 69},
	"status-fail":    {220, 53, 69},
	"status-blocked": {255, 153, 0},
	"status-pending": {108, 117, 125},
	"status-default": {52, 58, 64},
}

// WritePDF encodes doc as an A4 PDF with a page header and a
// "Page n of N" footer.
func WritePDF(doc *Document, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfFooterSpace+5)
	pdf.AliasNbPages("")
	pdf.SetTitle(doc.Cover.Title, true)
	pdf.SetCreator("assurelog", false)
	pdf.SetCreationDate(doc.Cover.GeneratedAt)
	pdf.SetModificationDate(doc.Cover.GeneratedAt)

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, tr(doc.Cover.Title), "B", 1, "L", false, 0, "")
		pdf.Ln(3)
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfFooterSpace)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()
	writeCover(pdf, tr, doc.Cover)

	for _, sec := range doc.Sections {
		if sec.PageBreakBefore {
			pdf.AddPage()
		}
		writeSection(pdf, tr, sec)
	}

	if pdf.Err() {
		return fmt.Errorf("render pdf: %w", pdf.Error())
	}
	return pdf.Output(w)
}

func writeCover(pdf *fpdf.Fpdf, tr func(string) string, c Cover) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(c.Title), "", "L", false)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s  |  %d report(s)",
		c.GeneratedAt.UTC().Format(DisplayDateLayout+" 15:04 MST"), c.ReportCount), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
}

func writeSection(pdf *fpdf.Fpdf, tr func(string) string, sec Section) {
	m := sec.Meta
	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 8, tr(m.Title), "", "L", false)
	pdf.Ln(1)

	field := func(label, value string) {
		if value == "" {
			return
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, pdfLineHeight, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, pdfLineHeight, tr(value), "", "L", false)
	}
	field("Date:", m.Date)
	field("Responsible:", m.MadeBy)
	field("Environment:", m.TestEnvironment)
	if m.Link != "" {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, pdfLineHeight, "Link:", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "U", 10)
		pdf.SetTextColor(0, 0, 200)
		pdf.CellFormat(0, pdfLineHeight, tr(m.Link), "", 1, "L", false, 0, m.Link)
		pdf.SetTextColor(0, 0, 0)
	}
	field("Feature/Scenario:", m.FeatureScenario)
	pdf.Ln(4)

	if sec.Empty {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 8, "No test cases recorded.", "", 1, "L", false, 0, "")
		return
	}

	for _, cb := range sec.Cases {
		writeCase(pdf, tr, cb)
	}
}

func writeCase(pdf *fpdf.Fpdf, tr func(string) string, cb CaseBlock) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(240, 240, 240)
	pdf.MultiCell(0, 7, tr(cb.Heading), "", "L", true)

	c := statusColors[cb.StatusClass]
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(c.r, c.g, c.b)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(pdf.GetStringWidth(cb.Status)+6, 6, cb.Status, "", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(1)

	block := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, pdfLineHeight, tr(label), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, pdfLineHeight, tr(value), "", "L", false)
	}
	if cb.Scenario != "" {
		block("Scenario", cb.Scenario)
	}
	block("Expected Result", cb.ExpectedResult)
	block("Actual Result", cb.ActualResult)

	if len(cb.Evidence) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, pdfLineHeight, "Evidence", "", 1, "L", false, 0, "")
		for i, ev := range cb.Evidence {
			writeEvidence(pdf, tr, ev, i)
		}
	}
	pdf.Ln(5)
}

func writeEvidence(pdf *fpdf.Fpdf, tr func(string) string, ev EvidenceBlock, idx int) {
	switch ev.Kind {
	case EvidenceImage:
		if writeImage(pdf, ev, idx) {
			return
		}
		fallthrough
	case EvidenceFile:
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, pdfLineHeight, tr("[file] "+ev.Name), "", 1, "L", false, 0, "")
	default:
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, pdfLineHeight, tr("[missing] "+ev.Name), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
}

// writeImage embeds the picture scaled to the text width. It returns false
// when the bytes cannot be embedded.
func writeImage(pdf *fpdf.Fpdf, ev EvidenceBlock, idx int) bool {
	data, err := flattenJPEG(ev.Data)
	if err != nil {
		return false
	}

	name := fmt.Sprintf("%s#%d", ev.URL, idx)
	opts := fpdf.ImageOptions{ImageType: "JPG", ReadDpi: false}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if info == nil || pdf.Err() {
		return false
	}

	pageW, pageH := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	maxW := pageW - left - right

	w, h := info.Width(), info.Height()
	if w <= 0 || h <= 0 {
		return false
	}
	scale := maxW / w
	if h*scale > pdfMaxImageH {
		scale = pdfMaxImageH / h
	}
	if scale > 1 {
		scale = 1
	}
	w, h = w*scale, h*scale

	if pdf.GetY()+h > pageH-bottom {
		pdf.AddPage()
	}
	y := pdf.GetY()
	pdf.ImageOptions(name, left, y, w, h, false, opts, 0, "")
	pdf.SetY(y + h + 2)
	return true
}

// flattenJPEG re-encodes an image as an opaque baseline JPEG so every
// source format embeds the same way.
func flattenJPEG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
