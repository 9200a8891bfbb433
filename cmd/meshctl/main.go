// Command meshctl is a tiny diagnostic CLI over pkg/mcmsdk: create a
// client from a JSON config file, create a sender or receiver
// connection, push or pull one buffer, and print how long each step
// took. It exists for operators poking at a running media proxy by
// hand, not as a production media pipeline driver.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-mcm/mesh-dataplane/internal/mlog"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "meshctl",
		Short: "Diagnostic CLI for the mesh-dataplane SDK",
	}
	root.AddCommand(newSendCmd())
	root.AddCommand(newRecvCmd())
	root.AddCommand(newInspectRTPCmd())
	return root
}

func init() {
	mlog.SetBase(mlog.Base().With().Str("app", "meshctl").Logger())
}
