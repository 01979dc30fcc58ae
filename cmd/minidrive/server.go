package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matozelenak/minidrive/internal/config"
	"github.com/matozelenak/minidrive/internal/server"
)

func serverCmd() *cobra.Command {
	var (
		root   string
		port   int
		listen string
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the MiniDrive server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(root, 0o755); err != nil {
				return fmt.Errorf("creating root: %w", err)
			}
			cfg, err := config.LoadConfig(root)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			switch {
			case cmd.Flags().Changed("listen"):
				cfg.Server.Listen = listen
			case cmd.Flags().Changed("port"):
				host, _, err := net.SplitHostPort(cfg.Server.Listen)
				if err != nil {
					host = "0.0.0.0"
				}
				cfg.Server.Listen = net.JoinHostPort(host, strconv.Itoa(port))
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "[minidrive] shutting down...")
				cancel()
			}()

			return server.New(root, cfg).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&root, "root", "server_root", "Server root directory")
	cmd.Flags().IntVar(&port, "port", 9000, "TCP port to listen on")
	cmd.Flags().StringVar(&listen, "listen", "", "TCP listen address (overrides --port)")
	return cmd
}
