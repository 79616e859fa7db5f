package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagecheck/pagecheck/internal/fixture"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the checkbox reference page until interrupted",
		Long: `Serve runs the local copy of the checkbox page. /checkboxes is the
reference page; /checkboxes?sync=off leaves out the script that keeps the
checked attribute in step with the property.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging, c.stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := fixture.Start(addr, logger.WithField("component", "fixture"))
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
			case err := <-srv.Done():
				return err
			}

			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9323", "listen address")
	return cmd
}
