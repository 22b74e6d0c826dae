package certificate

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

// Document is the content printed on a certificate.
type Document struct {
	AppName    string
	Name       string
	Department string
	Points     int
	IssuedAt   time.Time
}

// Renderer turns a Document into the bytes of a printable artifact.
type Renderer interface {
	Render(doc Document) ([]byte, error)
}

type rgb struct{ r, g, b int }

var (
	colorBackground = rgb{247, 247, 245}
	colorAccent     = rgb{201, 100, 66}
	colorText       = rgb{43, 43, 43}
	colorMuted      = rgb{107, 107, 107}
)

// PDFRenderer draws an A4 landscape certificate.
type PDFRenderer struct{}

var _ Renderer = PDFRenderer{}

func (PDFRenderer) Render(doc Document) ([]byte, error) {
	const pageW, pageH = 297.0, 210.0

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	fill := func(c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
	text := func(c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
	line := func(y, h float64, txt, style string, size float64, c rgb) {
		pdf.SetFont("Helvetica", style, size)
		text(c)
		pdf.SetXY(0, y)
		pdf.CellFormat(pageW, h, tr(txt), "", 0, "C", false, 0, "")
	}

	// background & double border
	fill(colorBackground)
	pdf.Rect(0, 0, pageW, pageH, "F")
	pdf.SetDrawColor(colorAccent.r, colorAccent.g, colorAccent.b)
	pdf.SetLineWidth(2)
	pdf.Rect(10, 10, pageW-20, pageH-20, "D")
	pdf.SetLineWidth(0.5)
	pdf.Rect(15, 15, pageW-30, pageH-30, "D")

	line(32, 14, doc.AppName, "B", 34, colorAccent)
	line(48, 10, "Certificate of Achievement", "", 18, colorMuted)

	pdf.SetLineWidth(0.8)
	pdf.Line(pageW/2-40, 62, pageW/2+40, 62)

	line(72, 8, "This is to certify that", "", 14, colorText)
	line(84, 16, doc.Name, "B", 30, colorText)
	if doc.Department != "" {
		line(102, 8, fmt.Sprintf("from the Department of %s", doc.Department), "", 13, colorMuted)
	}
	line(116, 8, fmt.Sprintf("has earned %d points through outstanding contributions to", doc.Points), "", 13, colorText)
	line(124, 8, "peer mentoring, sharing study materials, and resolving academic doubts", "", 13, colorText)
	line(132, 8, fmt.Sprintf("on the %s platform.", doc.AppName), "", 13, colorText)

	line(160, 8, "Date of Issue: "+doc.IssuedAt.Format("January 2, 2006"), "", 11, colorMuted)
	line(176, 8, fmt.Sprintf("%s – Learn Together, Grow Together", doc.AppName), "I", 10, colorAccent)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "writing certificate pdf")
	}
	return buf.Bytes(), nil
}
