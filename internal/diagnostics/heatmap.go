// Package diagnostics provides operator-facing, debug-only HTML
// visualizations of a flushed frame: a go-echarts heatmap of one
// channel's aggregation map, answering the one question an operator
// has mid-acquisition — does the coordinate mapping look right.
package diagnostics

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/snakecore/tagimage/internal/fsutil"
	"github.com/snakecore/tagimage/internal/security"
	"github.com/snakecore/tagimage/internal/snake"
)

// exportFS is swapped for a fsutil.MemoryFileSystem in tests, so
// ExportHeatmap never touches a real disk during the test suite.
var exportFS fsutil.FileSystem = fsutil.OSFileSystem{}

// HeatmapHTML renders a go-echarts heatmap of a single channel's
// aggregation map at a given plane, as a complete standalone HTML page.
func HeatmapHTML(frame snake.FinishedFrame, channel int, plane int32) (string, error) {
	if channel < 0 || channel >= len(frame.Channels) {
		return "", fmt.Errorf("diagnostics: channel %d out of range", channel)
	}

	type cell struct {
		row, col int32
		count    uint8
	}
	var cells []cell
	maxCount := uint8(0)
	for key, count := range frame.Channels[channel] {
		if key.Plane != plane {
			continue
		}
		cells = append(cells, cell{row: key.Row, col: key.Column, count: count})
		if count > maxCount {
			maxCount = count
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].row != cells[j].row {
			return cells[i].row < cells[j].row
		}
		return cells[i].col < cells[j].col
	})

	data := make([]opts.HeatMapData, 0, len(cells))
	for _, c := range cells {
		data = append(data, opts.HeatMapData{Value: [3]interface{}{c.col, c.row, c.count}})
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "snake-core frame heatmap", Theme: "dark", Width: "900px", Height: "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("frame %d, channel %d, plane %d", frame.Sequence, channel, plane),
			Subtitle: fmt.Sprintf("max_frame_time=%d ps, cells=%d", frame.MaxFrameTime, len(cells)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "column"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "row"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCount) + 1,
		}),
	)
	hm.AddSeries("counts", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		return "", fmt.Errorf("diagnostics: failed to render heatmap: %w", err)
	}
	return buf.String(), nil
}

// ExportHeatmap renders channel/plane's heatmap and writes it to path
// as a standalone HTML file. path must resolve within the process's
// working directory or the OS temp directory: the export endpoint
// takes its destination from an HTTP query parameter, so it's the one
// place in this core an outside caller gets to name a filesystem path,
// and it must not be usable to write somewhere the operator didn't
// intend.
func ExportHeatmap(frame snake.FinishedFrame, channel int, plane int32, path string) error {
	if err := security.ValidateExportPath(path); err != nil {
		return fmt.Errorf("diagnostics: refusing export path: %w", err)
	}
	html, err := HeatmapHTML(frame, channel, plane)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := exportFS.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("diagnostics: failed to create export directory: %w", err)
		}
	}
	f, err := exportFS.Create(path)
	if err != nil {
		return fmt.Errorf("diagnostics: failed to create export file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write([]byte(html)); err != nil {
		return fmt.Errorf("diagnostics: failed to write export file: %w", err)
	}
	return nil
}

// ExportHandler writes the most recent frame's heatmap to a path named
// by the "path" query parameter, for an operator script to pull a
// snapshot without scraping the HTML endpoint.
func ExportHandler(provider FrameProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			http.Error(w, "missing required \"path\" query parameter", http.StatusBadRequest)
			return
		}
		frame, ok := provider.LastFrame()
		if !ok {
			http.Error(w, "no frame available yet", http.StatusNotFound)
			return
		}
		channel := queryInt(r, "channel", 0)
		plane := int32(queryInt(r, "plane", 0))

		if err := ExportHeatmap(frame, channel, plane, path); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, "exported to %s\n", path)
	}
}

// FrameProvider supplies the most recently flushed frame for the debug
// HTTP handler to render, decoupling the handler from the stream
// driver's internals.
type FrameProvider interface {
	LastFrame() (snake.FinishedFrame, bool)
}

// Handler returns a net/http handler serving a heatmap of the most
// recent frame. channel and plane are read from the "channel" and
// "plane" query parameters, defaulting to 0.
func Handler(provider FrameProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, ok := provider.LastFrame()
		if !ok {
			http.Error(w, "no frame available yet", http.StatusNotFound)
			return
		}
		channel := queryInt(r, "channel", 0)
		plane := int32(queryInt(r, "plane", 0))

		html, err := HeatmapHTML(frame, channel, plane)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}
