package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/open-mcm/mesh-dataplane/pkg/mcmsdk"
)

func newSendCmd() *cobra.Command {
	var clientConfigPath, connConfigPath, data string
	var timeoutMs int

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Create a sender connection and push one buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCfg, err := os.ReadFile(clientConfigPath)
			if err != nil {
				return fmt.Errorf("reading client config: %w", err)
			}
			connCfg, err := os.ReadFile(connConfigPath)
			if err != nil {
				return fmt.Errorf("reading connection config: %w", err)
			}

			t0 := time.Now()
			client, err := mcmsdk.CreateClient(clientCfg)
			if err != nil {
				return fmt.Errorf("create_client: %w", err)
			}
			defer mcmsdk.DeleteClient(client)
			fmt.Fprintf(cmd.OutOrStdout(), "create_client: %s\n", time.Since(t0))

			t0 = time.Now()
			conn, err := mcmsdk.CreateTxConnection(client, connCfg)
			if err != nil {
				return fmt.Errorf("create_tx_connection: %w", err)
			}
			defer mcmsdk.DeleteConnection(conn)
			fmt.Fprintf(cmd.OutOrStdout(), "create_tx_connection: %s\n", time.Since(t0))

			t0 = time.Now()
			buf, err := mcmsdk.GetBufferTimeout(conn, timeoutMs)
			if err != nil {
				return fmt.Errorf("get_buffer_timeout: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "get_buffer_timeout: %s\n", time.Since(t0))

			n := copy(buf.Payload(), []byte(data))
			if err := mcmsdk.BufferSetPayloadLen(buf, uint32(n)); err != nil {
				return fmt.Errorf("buffer_set_payload_len: %w", err)
			}

			t0 = time.Now()
			if err := mcmsdk.PutBufferTimeout(buf, timeoutMs); err != nil {
				return fmt.Errorf("put_buffer_timeout: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "put_buffer_timeout: %s (%d bytes)\n", time.Since(t0), n)

			if err := mcmsdk.ShutdownConnection(conn); err != nil {
				return fmt.Errorf("shutdown_connection: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&clientConfigPath, "client-config", "", "path to client config JSON")
	cmd.Flags().StringVar(&connConfigPath, "conn-config", "", "path to connection config JSON")
	cmd.Flags().StringVar(&data, "data", "hello, mesh", "payload bytes to send")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", int(-2), "timeout in ms, or -2 default / -1 infinite / 0 non-blocking")
	cmd.MarkFlagRequired("client-config")
	cmd.MarkFlagRequired("conn-config")

	return cmd
}
