package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/lj-costmap/internal/costmap"
	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/place"
)

// maxGridPoints caps the cells sent to the browser; larger grids are strided.
const maxGridPoints = 40000

func hasScores(res jockey.Result) bool  { return len(res.Scores) > 0 }
func hasProfile(res jockey.Result) bool { return res.Profile != nil && !res.Profile.Empty() }

// handleDissimilarityChart renders the scores of the most recent scoring
// action as a bar chart, one bar per vertex.
func (ws *WebServer) handleDissimilarityChart(w http.ResponseWriter, r *http.Request) {
	res, ok := ws.lastWith(hasScores)
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no dissimilarity scores yet")
		return
	}

	labels := make([]string, len(res.Scores))
	bars := make([]opts.BarData, len(res.Scores))
	for i, s := range res.Scores {
		labels[i] = strconv.FormatInt(int64(s.Vertex), 10)
		bars[i] = opts.BarData{Value: s.Dissimilarity}
	}
	subtitle := fmt.Sprintf("action=%s goal=%s", res.Action, res.GoalID)
	if best, ok := place.Best(res.Scores); ok {
		subtitle += fmt.Sprintf(" best=%d (%.3f)", best.Vertex, best.Dissimilarity)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Dissimilarity", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Dissimilarity by vertex", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "vertex"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "dissimilarity"}),
	)
	bar.SetXAxis(labels).AddSeries("dissimilarity", bars)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleGridChart renders the latest grid's known cells as a scatter
// coloured by cost, in grid coordinates.
func (ws *WebServer) handleGridChart(w http.ResponseWriter, r *http.Request) {
	g, ok := ws.grids.Latest()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no grid received yet")
		return
	}

	stride := 1
	for (g.Width/stride)*(g.Height/stride) > maxGridPoints {
		stride++
	}
	data := make([]opts.ScatterData, 0, (g.Width/stride+1)*(g.Height/stride+1))
	for row := 0; row < g.Height; row += stride {
		for col := 0; col < g.Width; col += stride {
			v := g.At(col, row)
			if v == costmap.Unknown {
				continue
			}
			x := (float64(col) + 0.5) * g.Resolution
			y := (float64(row) + 0.5) * g.Resolution
			data = append(data, opts.ScatterData{Value: []interface{}{x, y, int(v)}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Occupancy grid", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Latest occupancy grid",
			Subtitle: fmt.Sprintf("%dx%d @ %.2fm stride=%d known=%d", g.Width, g.Height, g.Resolution, stride, g.KnownCells()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: float64(g.Width) * g.Resolution, Name: "x (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: float64(g.Height) * g.Resolution, Name: "y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(costmap.Lethal),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#f7fbff", "#6baed6", "#08306b"}},
		}),
	)
	scatter.AddSeries("cost", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleProfilePlot draws the most recent place profile as a closed
// polygon around the sensor, with frontier beams and crossing marked.
func (ws *WebServer) handleProfilePlot(w http.ResponseWriter, r *http.Request) {
	res, ok := ws.lastWith(hasProfile)
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no place profile yet")
		return
	}
	p, err := profilePlot(*res.Profile, res.Crossing)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build plot: %v", err))
		return
	}
	p.Title.Text = fmt.Sprintf("Place profile (goal %s)", res.GoalID)

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func profilePlot(profile place.Profile, cr *place.Crossing) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	pts := profile.Points()
	outline := make(plotter.XYs, 0, len(pts)+1)
	var frontier plotter.XYs
	for i, v := range pts {
		outline = append(outline, plotter.XY{X: v.X, Y: v.Y})
		if profile.Samples[i].Frontier {
			frontier = append(frontier, plotter.XY{X: v.X, Y: v.Y})
		}
	}
	outline = append(outline, outline[0])

	line, err := plotter.NewLine(outline)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)
	p.Legend.Add("profile", line)

	if len(frontier) > 0 {
		sc, err := plotter.NewScatter(frontier)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("frontier", sc)
	}

	if cr != nil && len(cr.Frontiers) > 0 {
		for _, f := range cr.Frontiers {
			door, err := plotter.NewLine(plotter.XYs{{X: f.P1.X, Y: f.P1.Y}, {X: f.P2.X, Y: f.P2.Y}})
			if err != nil {
				return nil, err
			}
			door.Width = vg.Points(2)
			door.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
			p.Add(door)
		}
		c, err := plotter.NewScatter(plotter.XYs{{X: cr.Center.X, Y: cr.Center.Y}})
		if err != nil {
			return nil, err
		}
		c.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		c.GlyphStyle.Radius = vg.Points(3)
		p.Add(c)
		p.Legend.Add("crossing", c)
	}
	return p, nil
}
