package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-mcm/mesh-dataplane/pkg/mcmconfig"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
	"github.com/open-mcm/mesh-dataplane/pkg/st2110rtp"
)

func newInspectRTPCmd() *cobra.Command {
	var connConfigPath string

	cmd := &cobra.Command{
		Use:   "inspect-rtp",
		Short: "Preview the RTP header an st2110 connection config would produce on the wire",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(connConfigPath)
			if err != nil {
				return fmt.Errorf("reading connection config: %w", err)
			}
			cfg, err := mcmconfig.ParseConnectionConfig(raw, mcmtype.Sender)
			if err != nil {
				return fmt.Errorf("parsing connection config: %w", err)
			}
			if cfg.Type.Kind != mcmtype.ST2110Kind {
				return fmt.Errorf("connection config is not an st2110 connection")
			}

			h := st2110rtp.PreviewHeader(cfg.Type.ST2110, 1, 0)
			wire, err := st2110rtp.MarshalPreview(h)
			if err != nil {
				return fmt.Errorf("marshalling rtp header preview: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "payload type: %d\n", h.PayloadType)
			fmt.Fprintf(cmd.OutOrStdout(), "header bytes: %s\n", hex.EncodeToString(wire))
			return nil
		},
	}

	cmd.Flags().StringVar(&connConfigPath, "conn-config", "", "path to connection config JSON")
	cmd.MarkFlagRequired("conn-config")

	return cmd
}
