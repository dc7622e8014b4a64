package export

import (
	"errors"
	"fmt"

	"github.com/noah-isme/ticket-report-export/pkg/raster"
)

// ErrAssembly reports an artifact or geometry the layout cannot place.
var ErrAssembly = errors.New("document assembly failed")

// PageGeometry describes a page in millimetres.
type PageGeometry struct {
	Width  float64
	Height float64
	Margin float64
}

// A4Portrait is the default report geometry.
func A4Portrait() PageGeometry {
	return PageGeometry{Width: 210, Height: 297, Margin: 15}
}

// ContentWidth is the horizontal space between margins.
func (g PageGeometry) ContentWidth() float64 {
	return g.Width - 2*g.Margin
}

// Bottom is the lowest offset content may reach.
func (g PageGeometry) Bottom() float64 {
	return g.Height - g.Margin
}

func (g PageGeometry) validate() error {
	if g.Width <= 0 || g.Height <= 0 || g.Margin < 0 {
		return fmt.Errorf("%w: invalid page geometry %+v", ErrAssembly, g)
	}
	if g.ContentWidth() <= 0 || g.Bottom() <= g.Margin {
		return fmt.Errorf("%w: margins exceed page %+v", ErrAssembly, g)
	}
	return nil
}

// BlockKind distinguishes placed blocks.
type BlockKind string

const (
	BlockText  BlockKind = "text"
	BlockImage BlockKind = "image"
)

// Block is a positioned element on a page.
type Block struct {
	Kind     BlockKind
	X        float64
	Y        float64
	W        float64
	H        float64
	Text     string
	FontSize float64
	Bold     bool
	Align    string
	Image    *raster.Artifact
}

// Page holds blocks in placement order.
type Page struct {
	Number int
	Blocks []Block
}

// Document is the laid out report, ready to be encoded.
type Document struct {
	Geometry PageGeometry
	Title    string
	Pages    []Page
}

// DocumentMeta is printed in the header of the first page.
type DocumentMeta struct {
	Title       string
	Requester   string
	GeneratedAt string
}

// LayoutConfig sets block heights and spacing in millimetres and font sizes in points.
type LayoutConfig struct {
	TitleHeight     float64
	MetaLineHeight  float64
	HeaderSpacing   float64
	CaptionHeight   float64
	BlockSpacing    float64
	TitleFontSize   float64
	MetaFontSize    float64
	CaptionFontSize float64
}

// DefaultLayout returns the spacing used by the statistics report.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		TitleHeight:     10,
		MetaLineHeight:  6,
		HeaderSpacing:   8,
		CaptionHeight:   8,
		BlockSpacing:    10,
		TitleFontSize:   16,
		MetaFontSize:    10,
		CaptionFontSize: 12,
	}
}

// DocumentBuilder lays out raster artifacts onto pages in a single pass.
type DocumentBuilder struct {
	geometry PageGeometry
	layout   LayoutConfig
}

// NewDocumentBuilder constructs a builder, substituting defaults for zero values.
func NewDocumentBuilder(geometry PageGeometry, layout LayoutConfig) *DocumentBuilder {
	if geometry == (PageGeometry{}) {
		geometry = A4Portrait()
	}
	if layout == (LayoutConfig{}) {
		layout = DefaultLayout()
	}
	return &DocumentBuilder{geometry: geometry, layout: layout}
}

// pageLayout tracks the open page and its vertical cursor.
type pageLayout struct {
	geometry PageGeometry
	pages    []Page
	cursor   float64
}

func (l *pageLayout) openPage() {
	l.pages = append(l.pages, Page{Number: len(l.pages) + 1})
	l.cursor = l.geometry.Margin
}

func (l *pageLayout) fits(height float64) bool {
	return l.cursor+height <= l.geometry.Bottom()
}

func (l *pageLayout) place(block Block) {
	current := &l.pages[len(l.pages)-1]
	current.Blocks = append(current.Blocks, block)
}

func (l *pageLayout) advance(height float64) {
	l.cursor += height
	if bottom := l.geometry.Bottom(); l.cursor > bottom {
		l.cursor = bottom
	}
}

// Build places every artifact in order. A caption always shares the page of its image;
// an artifact that would cross the bottom margin moves to a fresh page.
func (b *DocumentBuilder) Build(items []raster.Artifact, meta DocumentMeta) (*Document, error) {
	g := b.geometry
	if err := g.validate(); err != nil {
		return nil, err
	}
	lay := b.layout
	layout := &pageLayout{geometry: g}
	layout.openPage()

	if err := b.placeHeader(layout, meta); err != nil {
		return nil, err
	}

	contentWidth := g.ContentWidth()
	pageCapacity := g.Bottom() - g.Margin
	for i := range items {
		item := &items[i]
		if item.Width <= 0 || item.Height <= 0 || len(item.Payload) == 0 {
			return nil, fmt.Errorf("%w: artifact %d (%s) has shape %dx%d with %d bytes",
				ErrAssembly, i, item.SurfaceID, item.Width, item.Height, len(item.Payload))
		}

		imageWidth := contentWidth
		imageHeight := contentWidth * float64(item.Height) / float64(item.Width)
		if lay.CaptionHeight+imageHeight > pageCapacity {
			imageHeight = pageCapacity - lay.CaptionHeight
			if imageHeight <= 0 {
				return nil, fmt.Errorf("%w: caption taller than page", ErrAssembly)
			}
			imageWidth = imageHeight * float64(item.Width) / float64(item.Height)
		}
		combined := lay.CaptionHeight + imageHeight

		if !layout.fits(combined) {
			layout.openPage()
		}

		layout.place(Block{
			Kind:     BlockText,
			X:        g.Margin,
			Y:        layout.cursor,
			W:        contentWidth,
			H:        lay.CaptionHeight,
			Text:     item.Caption,
			FontSize: lay.CaptionFontSize,
			Bold:     true,
			Align:    "L",
		})
		layout.place(Block{
			Kind:  BlockImage,
			X:     g.Margin + (contentWidth-imageWidth)/2,
			Y:     layout.cursor + lay.CaptionHeight,
			W:     imageWidth,
			H:     imageHeight,
			Image: item,
		})
		layout.advance(combined + lay.BlockSpacing)
	}

	return &Document{Geometry: g, Title: meta.Title, Pages: layout.pages}, nil
}

func (b *DocumentBuilder) placeHeader(layout *pageLayout, meta DocumentMeta) error {
	g := b.geometry
	lay := b.layout

	lines := make([]string, 0, 2)
	if meta.Requester != "" {
		lines = append(lines, "Solicitado por: "+meta.Requester)
	}
	if meta.GeneratedAt != "" {
		lines = append(lines, "Gerado em: "+meta.GeneratedAt)
	}
	height := lay.TitleHeight + float64(len(lines))*lay.MetaLineHeight + lay.HeaderSpacing
	if !layout.fits(height) {
		return fmt.Errorf("%w: header does not fit the first page", ErrAssembly)
	}

	layout.place(Block{
		Kind:     BlockText,
		X:        g.Margin,
		Y:        layout.cursor,
		W:        g.ContentWidth(),
		H:        lay.TitleHeight,
		Text:     meta.Title,
		FontSize: lay.TitleFontSize,
		Bold:     true,
		Align:    "C",
	})
	y := layout.cursor + lay.TitleHeight
	for _, line := range lines {
		layout.place(Block{
			Kind:     BlockText,
			X:        g.Margin,
			Y:        y,
			W:        g.ContentWidth(),
			H:        lay.MetaLineHeight,
			Text:     line,
			FontSize: lay.MetaFontSize,
			Align:    "C",
		})
		y += lay.MetaLineHeight
	}
	layout.advance(height)
	return nil
}
