package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/place"
	"github.com/banshee-data/lj-costmap/internal/rpc"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stateColor(s jockey.State) *color.Color {
	switch s {
	case jockey.StateDone:
		return color.New(color.FgGreen)
	case jockey.StateFailed:
		return color.New(color.FgRed)
	case jockey.StateInterrupted:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// printResult writes a human summary of res.
func printResult(w io.Writer, res jockey.Result) {
	yellow := color.New(color.FgYellow)

	yellow.Fprintf(w, "goal %s ", shortID(res.GoalID))
	fmt.Fprintf(w, "%s", res.Action)
	if res.Action == jockey.LocalizeInVertex || res.Action == jockey.PersistDescriptors {
		fmt.Fprintf(w, " vertex=%d", res.Vertex)
	}
	fmt.Fprint(w, ": ")
	stateColor(res.State).Fprintf(w, "%s", res.State)
	if d := res.Duration(); d > 0 {
		fmt.Fprintf(w, " (%v)", d)
	}
	fmt.Fprintln(w)

	if res.Err != nil {
		color.New(color.FgRed).Fprintf(w, "  %s: %s\n", res.Err.Kind, res.Err.Message)
	}
	if res.Profile != nil {
		fmt.Fprintf(w, "  place profile: %d samples, %d frontier beams, area %.2f m²\n",
			len(res.Profile.Samples), res.Profile.FrontierCount(), res.Profile.Area())
	}
	if res.Crossing != nil {
		fmt.Fprintf(w, "  crossing: center (%.2f, %.2f) radius %.2f m, %d frontiers\n",
			res.Crossing.Center.X, res.Crossing.Center.Y, res.Crossing.Radius, len(res.Crossing.Frontiers))
		for _, f := range res.Crossing.Frontiers {
			fmt.Fprintf(w, "    width %.2f m at %.2f rad\n", f.Width, f.Angle)
		}
	}
	for _, l := range res.Links {
		fmt.Fprintf(w, "  stored %s\n", l)
	}
	printScores(w, res.Scores)
}

func printScores(w io.Writer, scores []place.Score) {
	if len(scores) == 0 {
		return
	}
	best, _ := place.Best(scores)
	green := color.New(color.FgGreen)
	fmt.Fprintln(w, "  dissimilarity:")
	for _, s := range scores {
		if s.Vertex == best.Vertex {
			green.Fprintf(w, "  * %6d  %.4f\n", s.Vertex, s.Dissimilarity)
			continue
		}
		fmt.Fprintf(w, "    %6d  %.4f\n", s.Vertex, s.Dissimilarity)
	}
}

func printStatus(w io.Writer, st rpc.StatusResponse) {
	fmt.Fprintf(w, "jockey %s: ", st.Name)
	stateColor(st.State).Fprintf(w, "%s\n", st.State)
	if st.LastResult == nil {
		fmt.Fprintln(w, "No actions yet")
		return
	}
	fmt.Fprint(w, "last ")
	printResult(w, *st.LastResult)
}

// printDescriptors lists descriptors; place profiles get a shape summary.
func printDescriptors(w io.Writer, iface string, descs []rpc.DescriptorEntry) {
	if len(descs) == 0 {
		fmt.Fprintf(w, "No descriptors under %s\n", iface)
		return
	}
	cyan := color.New(color.FgCyan)
	cyan.Fprintf(w, "%s (%d descriptors)\n", iface, len(descs))
	for _, d := range descs {
		fmt.Fprintf(w, "  vertex %-6d id %-6d %6d bytes", d.Vertex, d.DescriptorID, len(d.Payload))
		var p place.Profile
		if err := json.Unmarshal(d.Payload, &p); err == nil && !p.Empty() {
			fmt.Fprintf(w, "  %d samples, area %.2f m²", len(p.Samples), p.Area())
		}
		fmt.Fprintln(w)
	}
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
