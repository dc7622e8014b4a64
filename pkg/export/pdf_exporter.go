package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter encodes laid out documents with gofpdf.
type PDFExporter struct {
	fontFamily string
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{fontFamily: "Arial"}
}

// RenderDocument draws every block at the position chosen by the builder. Automatic
// page breaks are disabled so the encoded pages match the layout one to one.
func (e *PDFExporter) RenderDocument(doc *Document) ([]byte, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrAssembly)
	}
	g := doc.Geometry
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: g.Width, Ht: g.Height},
	})
	pdf.SetMargins(g.Margin, g.Margin, g.Margin)
	pdf.SetAutoPageBreak(false, 0)
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range doc.Pages {
		pdf.AddPage()
		for i, block := range page.Blocks {
			switch block.Kind {
			case BlockText:
				style := ""
				if block.Bold {
					style = "B"
				}
				pdf.SetFont(e.fontFamily, style, block.FontSize)
				pdf.SetXY(block.X, block.Y)
				pdf.CellFormat(block.W, block.H, tr(block.Text), "", 0, block.Align, false, 0, "")
			case BlockImage:
				if block.Image == nil {
					return nil, fmt.Errorf("%w: image block %d on page %d has no artifact", ErrAssembly, i, page.Number)
				}
				name := fmt.Sprintf("page%d-block%d", page.Number, i)
				opts := gofpdf.ImageOptions{ImageType: "PNG"}
				pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(block.Image.Payload))
				pdf.ImageOptions(name, block.X, block.Y, block.W, block.H, false, opts, 0, "")
			default:
				return nil, fmt.Errorf("%w: unknown block kind %q", ErrAssembly, block.Kind)
			}
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("render pdf page %d: %w", page.Number, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
