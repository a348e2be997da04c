package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gematik/zero-authui/pkg/wstransport"
	"github.com/spf13/cobra"
)

var wsProbeCmd = &cobra.Command{
	Use:   "ws-probe <url>",
	Short: "Connect to a WebSocket hub, send stdin lines and print what comes back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headerFlags, _ := cmd.Flags().GetStringToString("header")

		transport, err := wstransport.New(args[0], headerFlags)
		if err != nil {
			return err
		}

		closed := make(chan error, 1)
		transport.OnReceive(func(msg []byte) {
			fmt.Println(string(msg))
		})
		transport.OnClose(func(err error) {
			closed <- err
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := transport.Start(dialCtx); err != nil {
			return err
		}
		slog.Info("Connected", "url", transport.URL())

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return transport.Stop()
				}
				if err := transport.Send(ctx, []byte(line)); err != nil {
					return err
				}
			case err := <-closed:
				return err
			case <-ctx.Done():
				return transport.Stop()
			}
		}
	},
}

func init() {
	wsProbeCmd.Flags().StringToStringP("header", "H", nil, "handshake header, as name=value")
	rootCmd.AddCommand(wsProbeCmd)
}
