package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Downsort/internal/config"
	"github.com/Ning0612/Downsort/internal/daemon"
	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/logger"
	"github.com/Ning0612/Downsort/internal/server"
)

func (a *app) pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(daemon.PIDPath(config.ExpandPath(a.cfg.History.Dir)))
}

func (a *app) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Serve the query API over HTTP until interrupted.

  GET /api/files
  GET /api/groups/extension
  GET /api/groups/date?mode=relative|day
  GET /api/duplicates
  GET /api/history?limit=N
  GET /healthz

Every endpoint accepts ?root= to scan another directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			pid := a.pidFile()
			if err := pid.Acquire(a.cfg.Server.Addr); err != nil {
				return err
			}
			defer func() {
				if err := pid.Release(); err != nil {
					logger.Get().Warn("failed to remove PID file", "error", err)
				}
			}()

			srv := server.New(a.svc, a.cfg.Server)
			if a.store != nil {
				srv.SetHistory(a.store)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", a.cfg.Scan.Root, a.cfg.Server.Addr)
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.AddCommand(a.serveStatusCmd(), a.serveStopCmd())
	return cmd
}

func (a *app) serveStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a server is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.pidFile().Running()
			if errors.Is(err, domain.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Server is not running.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server is running (pid %d) on http://%s\n", info.PID, info.Addr)
			return nil
		},
	}
}

func (a *app) serveStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.pidFile().Stop()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent stop signal to server (pid %d).\n", info.PID)
			return nil
		},
	}
}
