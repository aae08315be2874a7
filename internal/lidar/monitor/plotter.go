package monitor

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/rplidar.report/internal/lidar/revolution"
)

// distanceBands is the number of colour bands points are split into by range.
const distanceBands = 8

// RevolutionPlotter writes a top-down PNG of every Nth revolution into an
// output directory.
type RevolutionPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	every     int
	seen      int
	written   []string
}

// NewRevolutionPlotter plots one revolution in every. Values below 1 plot
// every revolution.
func NewRevolutionPlotter(every int) *RevolutionPlotter {
	if every < 1 {
		every = 1
	}
	return &RevolutionPlotter{every: every}
}

// Start creates outputDir and enables plotting.
func (rp *RevolutionPlotter) Start(outputDir string) error {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	rp.outputDir = outputDir
	rp.enabled = true
	rp.seen = 0
	rp.written = nil
	return nil
}

// Stop disables plotting.
func (rp *RevolutionPlotter) Stop() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.enabled = false
}

// Written returns the files produced since Start.
func (rp *RevolutionPlotter) Written() []string {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return append([]string(nil), rp.written...)
}

// Plot writes rev if plotting is enabled and rev is due. It returns the path
// written, or "" when the revolution was skipped.
func (rp *RevolutionPlotter) Plot(rev *revolution.Revolution) (string, error) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if !rp.enabled || rev == nil {
		return "", nil
	}
	rp.seen++
	if (rp.seen-1)%rp.every != 0 {
		return "", nil
	}

	path := filepath.Join(rp.outputDir, fmt.Sprintf("revolution_%06d.png", rev.Index))
	if err := WriteRevolutionPNG(rev, path); err != nil {
		return "", err
	}
	rp.written = append(rp.written, path)
	return path, nil
}

// WriteRevolutionPNG renders the valid points of rev in metres, sensor at
// the origin, with points coloured by range.
func WriteRevolutionPNG(rev *revolution.Revolution, path string) error {
	stats := rev.Stats()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Revolution %d: %d/%d valid, mean %.0f mm", rev.Index, stats.Valid, stats.Points, stats.MeanMM)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	bands := make([]plotter.XYs, distanceBands)
	extent := 1.0
	for _, pt := range rev.Points {
		if !pt.Valid() {
			continue
		}
		x, y := polarToXY(pt.AngleDegrees(), pt.DistanceMM()/1000)
		extent = math.Max(extent, math.Max(math.Abs(x), math.Abs(y)))

		band := 0
		if stats.MaxMM > 0 {
			band = int(pt.DistanceMM() / stats.MaxMM * (distanceBands - 1))
		}
		bands[band] = append(bands[band], plotter.XY{X: x, Y: y})
	}

	colors := generateColors(distanceBands)
	for i, pts := range bands {
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = colors[i]
		s.GlyphStyle.Radius = vg.Points(1)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
	}

	origin, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
	if err != nil {
		return err
	}
	origin.GlyphStyle.Color = color.Black
	origin.GlyphStyle.Radius = vg.Points(3)
	origin.GlyphStyle.Shape = draw.CrossGlyph{}
	p.Add(origin)

	// Symmetric axes keep the scan's proportions.
	pad := extent * 1.05
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save revolution plot: %w", err)
	}
	return nil
}

// polarToXY places an angle measured clockwise from the sensor's forward
// axis onto the plane with forward pointing up.
func polarToXY(angleDeg, r float64) (x, y float64) {
	theta := angleDeg * math.Pi / 180
	return r * math.Sin(theta), r * math.Cos(theta)
}

// generateColors returns n colours evenly spaced around the hue wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n) * 0.8
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
