package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfContentType   = "application/pdf"
	pdfFileExtension = ".pdf"

	// pdfFontName is the family registered for a UTF-8 TTF font.
	pdfFontName = "DejaVuSans"
)

type PDFFormatter struct {
	fontPath string
}

// NewPDFFormatter creates a PDF formatter. fontPath optionally points at a
// UTF-8 capable TTF font; without one the core Arial font is used and text is
// transliterated to cp1252.
func NewPDFFormatter(fontPath string) *PDFFormatter {
	return &PDFFormatter{fontPath: fontPath}
}

func (pf *PDFFormatter) Format(r Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(baseTitle, true)
	pdf.AddPage()

	fontName := "Arial"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if pf.fontPath != "" {
		if _, err := os.Stat(pf.fontPath); err == nil {
			pdf.AddUTF8Font(pdfFontName, "", pf.fontPath)
			pdf.AddUTF8Font(pdfFontName, "B", pf.fontPath)
			fontName = pdfFontName
			tr = func(s string) string { return s }
		}
	}

	pdf.SetFont(fontName, "B", 18)
	pdf.Cell(0, 10, tr(baseTitle))
	pdf.Ln(10)

	pdf.SetFont(fontName, "", 10)
	pdf.Cell(0, 6, tr("Generated on: "+r.GeneratedAt.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	for _, b := range r.blocks() {
		switch b.kind {
		case blockHeading:
			pdf.Ln(2)
			pdf.SetFont(fontName, "B", 13)
			pdf.Cell(0, 8, tr(b.text))
			pdf.Ln(9)
		case blockParagraph:
			pdf.SetFont(fontName, "", 11)
			pdf.MultiCell(0, 5.5, tr(b.text), "", "", false)
			pdf.Ln(2)
		case blockBullet:
			pdf.SetFont(fontName, "", 11)
			pdf.MultiCell(0, 5.5, tr("- "+b.text), "", "", false)
		case blockMetric:
			pdf.SetFont(fontName, "B", 11)
			pdf.Cell(50, 5.5, tr(b.text+":"))
			pdf.SetFont(fontName, "", 11)
			pdf.Cell(0, 5.5, fmt.Sprintf("%.4f", b.value))
			pdf.Ln(5.5)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (pf *PDFFormatter) ContentType() string {
	return pdfContentType
}

func (pf *PDFFormatter) FileExtension() string {
	return pdfFileExtension
}
