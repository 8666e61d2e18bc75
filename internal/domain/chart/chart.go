// Package chart renders a ranked disease result set into a horizontal
// combo chart: primary bars for the chosen basis metric plus two
// auxiliary line series on independent axes.
package chart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"

	"github.com/covercheck/covercheck/internal/domain/stats"
	"github.com/covercheck/covercheck/internal/platform/fonts"
)

// Brand palette. The top auxiliary series is always orange, the
// bottom one always blue.
var (
	brandOrange = rgb(0xF5, 0x82, 0x20)
	brandBlue   = rgb(0x00, 0x3A, 0x70)
	barFill     = rgb(0x9B, 0xAC, 0xBE)
	inkDark     = rgb(0x2B, 0x2B, 0x2B)
	inkLight    = rgb(0x6E, 0x6E, 0x6E)
	gridLine    = rgb(0xD9, 0xD9, 0xD9)
)

// Axis headroom so line markers and annotations never clip.
const (
	auxAxisPad     = 1.25
	primaryAxisPad = 1.12
	auxTickCount   = 5
)

type color struct{ r, g, b float64 }

func rgb(r, g, b uint8) color {
	return color{float64(r) / 255, float64(g) / 255, float64(b) / 255}
}

// Image is a self-contained raster payload ready for embedding. The
// zero value is the "no chart" sentinel returned for empty input.
type Image struct {
	PNG  []byte `json:"-"`
	MIME string `json:"mime"`
	Rows int    `json:"rows"`
}

// Empty reports whether this is the no-chart sentinel.
func (img Image) Empty() bool { return len(img.PNG) == 0 }

// DataURI encodes the image for direct embedding in a document.
func (img Image) DataURI() string {
	if img.Empty() {
		return ""
	}
	return "data:" + img.MIME + ";base64," + base64.StdEncoding.EncodeToString(img.PNG)
}

// Composer renders combo charts with an injected font library. Safe
// for concurrent use.
type Composer struct {
	fonts *fonts.Library
	log   zerolog.Logger
}

func NewComposer(fl *fonts.Library, log zerolog.Logger) *Composer {
	return &Composer{fonts: fl, log: log}
}

// geometry fixes the canvas layout for one render.
type geometry struct {
	width     int
	headerH   float64
	rowH      float64
	axesH     float64
	plotLeft  float64
	plotRight float64
}

func layoutFor(compact bool) geometry {
	if compact {
		return geometry{width: 860, headerH: 52, rowH: 58, axesH: 96, plotLeft: 180, plotRight: 60}
	}
	return geometry{width: 980, headerH: 64, rowH: 80, axesH: 112, plotLeft: 200, plotRight: 70}
}

// Compose renders rows into a combo chart. Rows must arrive ranked,
// best first; the best row is drawn topmost. Empty input returns the
// no-chart sentinel rather than an error.
func (c *Composer) Compose(rows []stats.DiseaseMetricRow, title string, basis stats.SortBasis, yearStart, yearEnd int, compact bool) Image {
	if len(rows) == 0 {
		return Image{}
	}

	years := yearEnd - yearStart + 1
	if years < 1 {
		years = 1
	}
	cb := deriveCombo(rows, basis, years)
	geo := layoutFor(compact)

	height := geo.headerH + float64(len(rows))*geo.rowH + geo.axesH
	dc := gg.NewContext(geo.width, int(height))
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	plotTop := geo.headerH
	plotBottom := height - geo.axesH
	plotW := float64(geo.width) - geo.plotLeft - geo.plotRight

	c.drawTitle(dc, geo, title, yearStart, yearEnd)
	c.drawBars(dc, geo, cb, plotTop, plotW)
	c.drawAuxAxis(dc, geo, cb.auxTop, brandOrange, plotTop, plotW, true)
	c.drawAuxAxis(dc, geo, cb.auxBottom, brandBlue, plotBottom, plotW, false)
	c.drawAuxLine(dc, geo, cb.auxTop, brandOrange, plotTop, plotW)
	c.drawAuxLine(dc, geo, cb.auxBottom, brandBlue, plotTop, plotW)
	c.drawLegend(dc, geo, cb, height)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		c.log.Warn().Err(err).Msg("chart encode failed")
		return Image{}
	}
	return Image{PNG: buf.Bytes(), MIME: "image/png", Rows: len(rows)}
}

// DataURI satisfies the renderer interface the stats handlers use.
func (c *Composer) DataURI(rows []stats.DiseaseMetricRow, title string, basis stats.SortBasis, yearStart, yearEnd int, compact bool) string {
	return c.Compose(rows, title, basis, yearStart, yearEnd, compact).DataURI()
}

func (c *Composer) drawTitle(dc *gg.Context, geo geometry, title string, yearStart, yearEnd int) {
	dc.SetFontFace(c.fonts.Bold(18))
	setColor(dc, inkDark)
	dc.DrawStringAnchored(title, geo.plotLeft, geo.headerH*0.42, 0, 0.5)

	dc.SetFontFace(c.fonts.Regular(12))
	setColor(dc, inkLight)
	span := fmt.Sprintf("%d–%d", yearStart, yearEnd)
	if yearStart == yearEnd {
		span = fmt.Sprintf("%d", yearStart)
	}
	dc.DrawStringAnchored(span, float64(geo.width)-geo.plotRight, geo.headerH*0.42, 1, 0.5)
}

// drawBars renders the primary series. The primary axis carries no
// numeric ticks; values appear as the per-row annotations instead.
func (c *Composer) drawBars(dc *gg.Context, geo geometry, cb combo, plotTop, plotW float64) {
	max := axisMax(cb.primary.max(), primaryAxisPad)
	barH := geo.rowH * 0.42

	for i := range cb.primary.values {
		yc := plotTop + (float64(i)+0.5)*geo.rowH
		w := cb.primary.values[i] / max * plotW

		setColor(dc, gridLine)
		dc.SetLineWidth(1)
		dc.DrawLine(geo.plotLeft, yc, geo.plotLeft+plotW, yc)
		dc.Stroke()

		setColor(dc, barFill)
		dc.DrawRectangle(geo.plotLeft, yc-barH/2, w, barH)
		dc.Fill()

		dc.SetFontFace(c.fonts.Bold(13))
		setColor(dc, inkDark)
		dc.DrawStringAnchored(cb.labels[i], geo.plotLeft-12, yc, 1, 0.5)

		dc.SetFontFace(c.fonts.Regular(12))
		dc.DrawStringAnchored(cb.annotation(i), geo.plotLeft+w+8, yc, 0, 0.5)
	}
}

// drawAuxAxis draws one auxiliary scale with real numeric ticks and a
// title naming the metric and its unit.
func (c *Composer) drawAuxAxis(dc *gg.Context, geo geometry, s series, col color, axisY, plotW float64, top bool) {
	max := axisMax(s.max(), auxAxisPad)

	setColor(dc, col)
	dc.SetLineWidth(1.5)
	dc.DrawLine(geo.plotLeft, axisY, geo.plotLeft+plotW, axisY)
	dc.Stroke()

	tickLen := 5.0
	labelOff := -9.0
	titleOff := -26.0
	if !top {
		tickLen = -5.0
		labelOff = 17.0
		titleOff = 36.0
	}

	dc.SetFontFace(c.fonts.Regular(10))
	for t := 0; t <= auxTickCount; t++ {
		v := max * float64(t) / auxTickCount
		x := geo.plotLeft + float64(t)/auxTickCount*plotW
		dc.DrawLine(x, axisY, x, axisY-tickLen)
		dc.Stroke()
		dc.DrawStringAnchored(formatValue(v), x, axisY+labelOff, 0.5, 0.5)
	}

	dc.SetFontFace(c.fonts.Bold(11))
	dc.DrawStringAnchored(fmt.Sprintf("%s (%s)", s.name, s.unit),
		geo.plotLeft+plotW/2, axisY+titleOff, 0.5, 0.5)
}

func (c *Composer) drawAuxLine(dc *gg.Context, geo geometry, s series, col color, plotTop, plotW float64) {
	max := axisMax(s.max(), auxAxisPad)

	setColor(dc, col)
	dc.SetLineWidth(2)
	for i := 1; i < len(s.values); i++ {
		x0 := geo.plotLeft + s.values[i-1]/max*plotW
		y0 := plotTop + (float64(i-1)+0.5)*geo.rowH
		x1 := geo.plotLeft + s.values[i]/max*plotW
		y1 := plotTop + (float64(i)+0.5)*geo.rowH
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}
	for i, v := range s.values {
		x := geo.plotLeft + v/max*plotW
		y := plotTop + (float64(i)+0.5)*geo.rowH
		dc.DrawCircle(x, y, 4)
		dc.Fill()
	}
}

// drawLegend names only the two auxiliary line series; the primary
// bars are identified by the title and annotations.
func (c *Composer) drawLegend(dc *gg.Context, geo geometry, cb combo, height float64) {
	y := height - 16
	x := geo.plotLeft

	dc.SetFontFace(c.fonts.Regular(11))
	for _, entry := range []struct {
		s   series
		col color
	}{
		{cb.auxTop, brandOrange},
		{cb.auxBottom, brandBlue},
	} {
		setColor(dc, entry.col)
		dc.SetLineWidth(2)
		dc.DrawLine(x, y, x+22, y)
		dc.Stroke()
		dc.DrawCircle(x+11, y, 3.5)
		dc.Fill()

		label := fmt.Sprintf("%s (%s)", entry.s.name, entry.s.unit)
		setColor(dc, inkDark)
		dc.DrawStringAnchored(label, x+30, y, 0, 0.5)
		w, _ := dc.MeasureString(label)
		x += 30 + w + 40
	}
}

func setColor(dc *gg.Context, c color) {
	dc.SetRGB(c.r, c.g, c.b)
}
