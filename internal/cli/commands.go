package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/place"
	"github.com/banshee-data/lj-costmap/internal/rpc"
)

var executeCmd = &cobra.Command{
	Use:   "execute ACTION",
	Short: "Run one jockey action",
	Long: `Run one action on the jockey and wait for its result. ACTION is one of
GET_VERTEX_DESCRIPTOR, LOCALIZE_IN_VERTEX (needs --vertex) or
GET_SIMILARITY (alias GET_DISSIMILARITY). Ctrl-C interrupts the action.`,
	Args: cobra.ExactArgs(1),
	Run:  runExecute,
}

var persistCmd = &cobra.Command{
	Use:   "persist",
	Short: "Store a descriptor pair on a vertex",
	Long: `Store a place profile and crossing on --vertex. With --result the
descriptors come from a result saved by "execute --save"; otherwise a
fresh GET_VERTEX_DESCRIPTOR runs first.`,
	Args: cobra.NoArgs,
	Run:  runPersist,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the jockey state and its last result",
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

var descriptorsCmd = &cobra.Command{
	Use:   "descriptors INTERFACE",
	Short: "List the descriptors the map holds under an interface",
	Args:  cobra.ExactArgs(1),
	Run:   runDescriptors,
}

var (
	vertexFlag int64
	saveFile   string
	resultFile string
)

func init() {
	executeCmd.Flags().Int64Var(&vertexFlag, "vertex", 0, "Target vertex for LOCALIZE_IN_VERTEX")
	executeCmd.Flags().StringVar(&saveFile, "save", "", "Also write the result as JSON to this file")
	persistCmd.Flags().Int64Var(&vertexFlag, "vertex", 0, "Vertex to store the descriptors on")
	persistCmd.Flags().StringVar(&resultFile, "result", "", "Result JSON holding the descriptors to store")
	persistCmd.MarkFlagRequired("vertex")
}

// buildRequest turns the command line into a validated request.
func buildRequest(action string, vertex int64) (jockey.Request, error) {
	a, err := jockey.ParseAction(action)
	if err != nil {
		return jockey.Request{}, err
	}
	req := jockey.Request{Action: a, Vertex: place.VertexID(vertex)}
	if err := req.Validate(); err != nil {
		return jockey.Request{}, err
	}
	return req, nil
}

// descriptorsFrom extracts the descriptor pair of a successful result.
func descriptorsFrom(res jockey.Result) (place.Profile, place.Crossing, error) {
	if !res.Succeeded() {
		if res.Err != nil {
			return place.Profile{}, place.Crossing{}, fmt.Errorf("result %s is %s: %s", shortID(res.GoalID), res.State, res.Err.Message)
		}
		return place.Profile{}, place.Crossing{}, fmt.Errorf("result %s is %s", shortID(res.GoalID), res.State)
	}
	if res.Profile == nil || res.Crossing == nil {
		return place.Profile{}, place.Crossing{}, fmt.Errorf("result %s carries no descriptors (action %s)", shortID(res.GoalID), res.Action)
	}
	return *res.Profile, *res.Crossing, nil
}

func loadResult(path string) (jockey.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return jockey.Result{}, fmt.Errorf("failed to read result: %w", err)
	}
	var res jockey.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return jockey.Result{}, fmt.Errorf("failed to parse result %s: %w", path, err)
	}
	return res, nil
}

func show(v interface{}, human func()) {
	if jsonOutput {
		if err := writeJSON(os.Stdout, v); err != nil {
			exitError("%v", err)
		}
		return
	}
	human()
}

func runExecute(cmd *cobra.Command, args []string) {
	req, err := buildRequest(args[0], vertexFlag)
	if err != nil {
		exitError("%v", err)
	}
	c := initContext(jockeyAddr)
	defer c.Close()

	res, err := c.jockey.Execute(c.ctx, req)
	if err != nil {
		exitError("execute failed: %v", err)
	}
	if saveFile != "" {
		f, err := os.Create(saveFile)
		if err != nil {
			exitError("failed to save result: %v", err)
		}
		if err := writeJSON(f, res); err != nil {
			f.Close()
			exitError("failed to save result: %v", err)
		}
		f.Close()
	}
	show(res, func() { printResult(os.Stdout, res) })
	if !res.Succeeded() {
		c.Close()
		os.Exit(2)
	}
}

func runPersist(cmd *cobra.Command, args []string) {
	c := initContext(jockeyAddr)
	defer c.Close()

	var src jockey.Result
	var err error
	if resultFile != "" {
		src, err = loadResult(resultFile)
	} else {
		src, err = c.jockey.Execute(c.ctx, jockey.Request{Action: jockey.GetVertexDescriptor})
	}
	if err != nil {
		exitError("%v", err)
	}
	profile, cr, err := descriptorsFrom(src)
	if err != nil {
		exitError("%v", err)
	}

	res, err := c.jockey.Persist(c.ctx, place.VertexID(vertexFlag), profile, cr)
	if err != nil {
		exitError("persist failed: %v", err)
	}
	show(res, func() { printResult(os.Stdout, res) })
	if !res.Succeeded() {
		c.Close()
		os.Exit(2)
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	c := initContext(jockeyAddr)
	defer c.Close()

	st, err := c.jockey.Status(c.ctx)
	if err != nil {
		exitError("status failed: %v", err)
	}
	show(st, func() { printStatus(os.Stdout, st) })
}

func runDescriptors(cmd *cobra.Command, args []string) {
	c := initContext(mapAddr)
	defer c.Close()

	descs, err := rpc.NewMapClient(c.conn, callTimeout).ListDescriptors(c.ctx, args[0])
	if err != nil {
		exitError("failed to list descriptors: %v", err)
	}
	show(descs, func() { printDescriptors(os.Stdout, args[0], descs) })
}
