// Package monitor renders decoded revolutions for humans: PNG plots written to
// disk and a live polar view served on the debug pages.
package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/rplidar.report/internal/httputil"
	"github.com/banshee-data/rplidar.report/internal/lidar/revolution"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Live keeps the most recent revolution for the debug views. It is safe for
// concurrent use.
type Live struct {
	mu        sync.RWMutex
	latest    *revolution.Revolution
	updatedAt time.Time
	count     int
}

// NewLive returns an empty live view.
func NewLive() *Live {
	return &Live{}
}

// Update replaces the revolution on display.
func (l *Live) Update(rev *revolution.Revolution) {
	if rev == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.latest = rev
	l.updatedAt = time.Now()
	l.count++
}

// Latest returns the revolution on display, or nil.
func (l *Live) Latest() *revolution.Revolution {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latest
}

// AttachRoutes mounts the polar view and a JSON summary on the /debug/ pages
// of mux.
func (l *Live) AttachRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("lidar/polar", "Latest lidar revolution (polar->XY)", http.HandlerFunc(l.handlePolar))
	debug.Handle("lidar/latest", "Latest lidar revolution statistics (JSON)", http.HandlerFunc(l.handleLatest))
}

type latestResponse struct {
	Index       int              `json:"index"`
	Partial     bool             `json:"partial"`
	Sweeps      int              `json:"sweeps"`
	DurationMS  float64          `json:"duration_ms"`
	Stats       revolution.Stats `json:"stats"`
	Revolutions int              `json:"revolutions_seen"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (l *Live) handleLatest(w http.ResponseWriter, r *http.Request) {
	l.mu.RLock()
	rev, updatedAt, count := l.latest, l.updatedAt, l.count
	l.mu.RUnlock()

	if rev == nil {
		httputil.NotFound(w, "no revolution decoded yet")
		return
	}

	httputil.WriteJSONOK(w, latestResponse{
		Index:       rev.Index,
		Partial:     rev.Partial,
		Sweeps:      rev.Sweeps,
		DurationMS:  float64(rev.Duration()) / float64(time.Millisecond),
		Stats:       rev.Stats(),
		Revolutions: count,
		UpdatedAt:   updatedAt,
	})
}

// handlePolar renders the latest revolution as an XY scatter in metres.
// Query params:
//   - max_points (optional; default 4000) to reduce payload size
func (l *Live) handlePolar(w http.ResponseWriter, r *http.Request) {
	rev := l.Latest()
	if rev == nil {
		httputil.NotFound(w, "no revolution decoded yet")
		return
	}

	maxPoints := 4000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	stride := 1
	if len(rev.Points) > maxPoints {
		stride = int(math.Ceil(float64(len(rev.Points)) / float64(maxPoints)))
	}

	data := make([]opts.ScatterData, 0, len(rev.Points)/stride+1)
	maxAbs := 0.0
	maxRange := 0.0
	for i := 0; i < len(rev.Points); i += stride {
		pt := rev.Points[i]
		if !pt.Valid() {
			continue
		}
		rangeM := pt.DistanceMM() / 1000
		x, y := polarToXY(pt.AngleDegrees(), rangeM)
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(x), math.Abs(y)))
		maxRange = math.Max(maxRange, rangeM)
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, rangeM}})
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	if maxRange == 0 {
		maxRange = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "LiDAR Revolution (Polar->XY)", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Revolution %d", rev.Index), Subtitle: fmt.Sprintf("points=%d stride=%d", len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxRange),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#3e4989", "#26828e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("revolution", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
