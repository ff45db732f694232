package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/kmsloop/internal/config"
	"github.com/bnema/kmsloop/internal/ipc"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <payload>...",
	Short: "Send a user event to a running loop",
	Long:  `Send joins its arguments with spaces and queues the result as a user event in the loop started by "kmsloop run". "quit" stops that loop.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newIPCClient()
		if err != nil {
			return err
		}
		return client.Send(ctxOrBackground(cmd.Context()), strings.Join(args, " "))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the output a running loop drives",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newIPCClient()
		if err != nil {
			return err
		}
		status, err := client.Status(ctxOrBackground(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), status)
		return err
	},
}

func newIPCClient() (*ipc.Client, error) {
	path, err := config.Get().SocketPath()
	if err != nil {
		return nil, err
	}
	return ipc.NewClient(path), nil
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statusCmd)
}
