package export

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ticket-report-export/pkg/raster"
)

func testGeometry() PageGeometry {
	return PageGeometry{Width: 210, Height: 297, Margin: 10}
}

func chartArtifacts(n, w, h int) []raster.Artifact {
	items := make([]raster.Artifact, n)
	for i := range items {
		items[i] = raster.Artifact{
			SurfaceID: fmt.Sprintf("chart-%d", i+1),
			Caption:   fmt.Sprintf("Gráfico %d", i+1),
			Width:     w,
			Height:    h,
			Payload:   []byte{0x89, 'P', 'N', 'G'},
		}
	}
	return items
}

func testMeta() DocumentMeta {
	return DocumentMeta{Title: "Relatório", Requester: "ana@example.com", GeneratedAt: "10/01/2024"}
}

func TestBuildHeaderOnFirstPage(t *testing.T) {
	doc, err := NewDocumentBuilder(testGeometry(), DefaultLayout()).Build(chartArtifacts(1, 190, 100), testMeta())
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)

	blocks := doc.Pages[0].Blocks
	require.Len(t, blocks, 5)
	require.Equal(t, "Relatório", blocks[0].Text)
	require.Equal(t, 10.0, blocks[0].Y)
	require.Equal(t, "Solicitado por: ana@example.com", blocks[1].Text)
	require.Equal(t, "Gerado em: 10/01/2024", blocks[2].Text)

	caption, img := blocks[3], blocks[4]
	require.Equal(t, BlockText, caption.Kind)
	require.Equal(t, 40.0, caption.Y)
	require.Equal(t, BlockImage, img.Kind)
	require.Equal(t, 48.0, img.Y)
	require.InDelta(t, 190.0, img.W, 1e-9)
	require.InDelta(t, 100.0, img.H, 1e-9)
}

func TestBuildPaginatesTwoChartsPerPage(t *testing.T) {
	builder := NewDocumentBuilder(testGeometry(), DefaultLayout())
	for n := 1; n <= 7; n++ {
		doc, err := builder.Build(chartArtifacts(n, 190, 100), testMeta())
		require.NoError(t, err)
		require.Len(t, doc.Pages, (n+1)/2, "charts=%d", n)
		for i, page := range doc.Pages {
			require.Equal(t, i+1, page.Number)
		}
	}
}

func TestBuildKeepsCaptionWithImage(t *testing.T) {
	g := testGeometry()
	doc, err := NewDocumentBuilder(g, DefaultLayout()).Build(chartArtifacts(5, 190, 100), testMeta())
	require.NoError(t, err)
	require.Len(t, doc.Pages, 3)

	placed := 0
	for _, page := range doc.Pages {
		for i, block := range page.Blocks {
			if block.Kind != BlockImage {
				continue
			}
			placed++
			require.Greater(t, i, 0)
			caption := page.Blocks[i-1]
			require.Equal(t, BlockText, caption.Kind)
			require.Equal(t, block.Image.Caption, caption.Text)
			require.InDelta(t, caption.Y+caption.H, block.Y, 1e-9)
			require.LessOrEqual(t, block.Y+block.H, g.Bottom())
			require.GreaterOrEqual(t, caption.Y, g.Margin)
		}
	}
	require.Equal(t, 5, placed)
	require.Equal(t, 10.0, doc.Pages[1].Blocks[0].Y)
}

func TestBuildPreservesInputOrder(t *testing.T) {
	doc, err := NewDocumentBuilder(testGeometry(), DefaultLayout()).Build(chartArtifacts(4, 190, 100), testMeta())
	require.NoError(t, err)

	order := make([]string, 0, 4)
	for _, page := range doc.Pages {
		for _, block := range page.Blocks {
			if block.Kind == BlockImage {
				order = append(order, block.Image.SurfaceID)
			}
		}
	}
	require.Equal(t, []string{"chart-1", "chart-2", "chart-3", "chart-4"}, order)
}

func TestBuildShrinksOversizedChart(t *testing.T) {
	g := testGeometry()
	doc, err := NewDocumentBuilder(g, DefaultLayout()).Build(chartArtifacts(1, 100, 1000), testMeta())
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)

	blocks := doc.Pages[1].Blocks
	require.Len(t, blocks, 2)
	img := blocks[1]
	require.InDelta(t, 269.0, img.H, 1e-9)
	require.InDelta(t, 26.9, img.W, 1e-9)
	require.InDelta(t, g.Bottom(), img.Y+img.H, 1e-9)
	require.InDelta(t, g.Margin+(190-26.9)/2, img.X, 1e-9)
}

func TestBuildBreaksPagesByCumulativeHeight(t *testing.T) {
	g := testGeometry()
	lay := DefaultLayout()
	shapes := []struct {
		id   string
		w, h int
	}{
		{"short", 190, 50},
		{"tall", 100, 1000},
		{"first-half", 190, 100},
		{"second-half", 190, 100},
		{"wide", 380, 100},
	}
	items := make([]raster.Artifact, len(shapes))
	for i, shape := range shapes {
		items[i] = raster.Artifact{SurfaceID: shape.id, Caption: shape.id, Width: shape.w, Height: shape.h, Payload: []byte{1}}
	}

	doc, err := NewDocumentBuilder(g, lay).Build(items, testMeta())
	require.NoError(t, err)

	perPage := make([][]string, len(doc.Pages))
	captionY := map[string]float64{}
	for p, page := range doc.Pages {
		for i, block := range page.Blocks {
			if block.Kind != BlockImage {
				continue
			}
			perPage[p] = append(perPage[p], block.Image.SurfaceID)
			captionY[block.Image.SurfaceID] = page.Blocks[i-1].Y
			require.LessOrEqual(t, block.Y+block.H, g.Bottom()+1e-9)
		}
	}
	require.Equal(t, [][]string{{"short"}, {"tall"}, {"first-half", "second-half"}, {"wide"}}, perPage)
	require.Equal(t, map[string]float64{"short": 40, "tall": 10, "first-half": 10, "second-half": 128, "wide": 10}, captionY)

	// every break happens only because the next chart would overflow the page it left
	for p := 1; p < len(doc.Pages); p++ {
		prev := doc.Pages[p-1].Blocks
		last := prev[len(prev)-1]
		cursor := last.Y + last.H + lay.BlockSpacing
		if cursor > g.Bottom() {
			cursor = g.Bottom()
		}
		caption, img := doc.Pages[p].Blocks[0], doc.Pages[p].Blocks[1]
		require.Greater(t, cursor+caption.H+img.H, g.Bottom(), "page %d", p+1)
	}
}

func TestBuildRejectsMalformedArtifact(t *testing.T) {
	builder := NewDocumentBuilder(testGeometry(), DefaultLayout())

	items := chartArtifacts(2, 190, 100)
	items[1].Width = 0
	_, err := builder.Build(items, testMeta())
	require.ErrorIs(t, err, ErrAssembly)

	items = chartArtifacts(1, 190, 100)
	items[0].Payload = nil
	_, err = builder.Build(items, testMeta())
	require.ErrorIs(t, err, ErrAssembly)
}

func TestBuildRejectsInvalidGeometry(t *testing.T) {
	_, err := NewDocumentBuilder(PageGeometry{Width: 20, Height: 297, Margin: 10}, DefaultLayout()).Build(nil, testMeta())
	require.ErrorIs(t, err, ErrAssembly)
}

func TestBuildWithoutChartsEmitsHeaderPage(t *testing.T) {
	doc, err := NewDocumentBuilder(PageGeometry{}, LayoutConfig{}).Build(nil, DocumentMeta{Title: "Vazio"})
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	require.Len(t, doc.Pages[0].Blocks, 1)
	require.Equal(t, A4Portrait(), doc.Geometry)
}
