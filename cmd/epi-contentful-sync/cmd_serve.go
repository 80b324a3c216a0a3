/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toothbrush/epi-contentful-sync/jobs"
	"github.com/toothbrush/epi-contentful-sync/server"
)

var serveUsage = strings.TrimSpace(`
Serve the sync routes over HTTP.  Each GET starts one background job and answers with a plain-text
acknowledgement; a request arriving while a job runs is turned away.  Job outcomes are logged, and
published to --amqp-url when set.

  /sync/{type}[/{id,id,...}]  /sync/all  /publish/{type,...}  /publish/all
  /sync-and-publish/all       /status
`)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sync routes over HTTP",
	Long:  serveUsage,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(nil, nil)
		if AuthUsername != "" || AuthPasswordHash != "" {
			if AuthUsername == "" || AuthPasswordHash == "" {
				return fmt.Errorf("cmd: basic auth needs both --auth-username and --auth-password-hash")
			}
			srv.Auth = &server.BasicAuth{Username: AuthUsername, PasswordHash: []byte(AuthPasswordHash)}
		} else {
			srv.Warn.Printf("No basic auth configured, anyone who can reach %s can start jobs", Listen)
		}

		w, err := newWiring(ctx, srv.Info)
		if err != nil {
			return err
		}
		defer w.close()

		notifier, closeNotifier, err := newNotifier(ctx, srv.Info)
		if err != nil {
			return err
		}
		defer closeNotifier()

		// The runner outlives the listener so a running job can be cancelled and awaited.
		runCtx, cancelRuns := context.WithCancel(context.Background())
		runner := jobs.NewRunner(runCtx, srv.Info, notifier)
		srv.Runner = runner
		srv.Migrator = w.migrator

		serveErr := srv.ListenAndServe(ctx, Listen)

		cancelRuns()
		<-runner.Stopped()
		srv.Info.Printf("Stopped")
		return serveErr
	},
}

var (
	Listen           string
	AuthUsername     string
	AuthPasswordHash string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&Listen, "listen", ":5000", "address to listen on")
	serveCmd.Flags().StringVar(&AuthUsername, "auth-username", "", "require this basic auth user")
	serveCmd.Flags().StringVar(&AuthPasswordHash, "auth-password-hash", "", "bcrypt hash of the basic auth password")
}
