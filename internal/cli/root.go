// Package cli implements ljctl, the operator command line for a running
// jockey and its map.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/banshee-data/lj-costmap/internal/rpc"
	"github.com/banshee-data/lj-costmap/internal/version"
)

var (
	jockeyAddr  string
	mapAddr     string
	callTimeout time.Duration
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "ljctl",
	Short: "Drive the costmap localizing jockey",
	Long: `ljctl issues actions to a running lj-costmap jockey, stores the
descriptors it builds in the map and inspects what the map holds.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&jockeyAddr, "addr", "localhost:50062", "Jockey gRPC address")
	rootCmd.PersistentFlags().StringVar(&mapAddr, "map-addr", "localhost:50061", "Map gRPC address")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 0, "Per-call timeout (0 waits for the action to finish)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON instead of a summary")

	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(persistCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(descriptorsCmd)
	rootCmd.AddCommand(versionCmd)
}

// cmdContext holds the connection shared by one command run.
type cmdContext struct {
	ctx    context.Context
	stop   context.CancelFunc
	conn   *grpc.ClientConn
	jockey *rpc.JockeyClient
}

func (c *cmdContext) Close() {
	c.stop()
	if c.conn != nil {
		c.conn.Close()
	}
}

// initContext dials addr. Ctrl-C cancels the context, which interrupts a
// running action on the jockey.
func initContext(addr string) *cmdContext {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	conn, err := rpc.Dial(addr)
	if err != nil {
		stop()
		exitError("%v", err)
	}
	return &cmdContext{
		ctx:    ctx,
		stop:   stop,
		conn:   conn,
		jockey: rpc.NewJockeyClient(conn, callTimeout),
	}
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ljctl version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
