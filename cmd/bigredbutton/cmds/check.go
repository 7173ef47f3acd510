package cmds

import (
	"fmt"

	"github.com/go-go-golems/bigredbutton/pkg/config"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/go-go-golems/bigredbutton/pkg/tasks"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Poll the build service once and report whether a deploy is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts, config.NeedAppflow)
			if err != nil {
				return err
			}
			client, err := newAppflowClient(cfg)
			if err != nil {
				return err
			}

			tracker := &tasks.ReadinessTracker{Client: client, State: state.New(), RequestTimeout: cfg.Appflow.HTTPTimeout}
			r, err := tracker.Poll(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "development: %s\n", orNone(r.DevBuild))
			_, _ = fmt.Fprintf(w, "production:  %s\n", orNone(r.ProdBuild))
			if r.LatestNumber > 0 {
				_, _ = fmt.Fprintf(w, "latest:      #%d\n", r.LatestNumber)
			}
			_, _ = fmt.Fprintf(w, "ready:       %v\n", r.Ready)
			return nil
		},
	}
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
