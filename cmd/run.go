package cmd

import (
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/asagiri-dev/choukan/internal/app"
	"github.com/asagiri-dev/choukan/internal/config"
	"github.com/asagiri-dev/choukan/internal/trigger"
)

var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run a single job once and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		jb, ok := a.Registry.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown job %q (available: %s)", args[0], strings.Join(a.Registry.Names(), ", "))
		}

		event := trigger.Event{Source: trigger.ScheduledSource}
		resp := trigger.Handle(ctx, event, jb.Name(), jb.Run, a.Logger)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("job %s finished with status %d", jb.Name(), resp.StatusCode)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
