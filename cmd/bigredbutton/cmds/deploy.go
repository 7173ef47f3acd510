package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/bigredbutton/pkg/config"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/go-go-golems/bigredbutton/pkg/tasks"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	var build string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a build to the production channel without the button",
		Long: "Deploy --build to the production channel. Without --build the build " +
			"currently on Development is deployed, provided it differs from Production.",
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

			st := state.New()
			if build == "" {
				tracker := &tasks.ReadinessTracker{Client: client, State: st, RequestTimeout: cfg.Appflow.HTTPTimeout}
				r, err := tracker.Poll(cmd.Context())
				if err != nil {
					return err
				}
				if !r.Ready {
					return errors.Errorf("nothing to deploy (development %s, production %s)", orNone(r.DevBuild), orNone(r.ProdBuild))
				}
				build = r.DevBuild
			} else {
				st.PublishCandidate(build)
			}

			if !st.TryBeginDispatch() {
				return errors.New("a deploy is already in progress")
			}
			defer st.EndDispatch()

			runner := &tasks.DeployRunner{
				Client:    client,
				ChannelID: cfg.Appflow.ProductionChannelID,
				State:     st,
				Timeout:   cfg.Timing.DeployTimeout,
			}
			rec, deployErr := runner.Deploy(cmd.Context(), build, tasks.SourceManual)

			b, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return errors.Wrap(err, "marshal output")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			if deployErr != nil {
				return deployErr
			}
			log.Info().Str("build", build).Msg("deployed")
			return nil
		},
	}

	cmd.Flags().StringVar(&build, "build", "", "Build id (uuid) to deploy; defaults to the current Development build")
	return cmd
}
