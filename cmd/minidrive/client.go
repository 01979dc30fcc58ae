package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matozelenak/minidrive/internal/client"
)

func clientCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "client [user@]host:port | ws://host:port/ws",
		Short: "Connect to a MiniDrive server and open a shell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ep, err := client.ParseEndpoint(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			c, err := client.Dial(ctx, ep)
			if err != nil {
				return err
			}
			defer c.Close()
			fmt.Fprintf(os.Stderr, "[minidrive] connected to %s\n", ep)

			interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
			in := bufio.NewReader(os.Stdin)
			p := &terminalPrompter{in: in, interactive: interactive}
			if err := client.Login(c, ep, p, os.Stdout); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			sh := client.NewShell(c, os.Stdout)
			sh.Prompt = interactive
			return sh.Run(in)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Connection timeout")
	return cmd
}
