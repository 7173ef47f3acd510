package cmds

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/go-go-golems/bigredbutton/pkg/appflow"
	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/config"
	"github.com/go-go-golems/bigredbutton/pkg/gpio"
	"github.com/go-go-golems/bigredbutton/pkg/supervise"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

type rootOptions struct {
	Config   string
	Explicit bool
}

func AddRootFlags(root *cobra.Command) {
	addRootFlags(root)
}

func addRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "Path to config file (defaults to .bigredbutton.yaml in the current directory)")
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	if cfgPath != "" {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return rootOptions{}, err
		}
		return rootOptions{Config: abs, Explicit: true}, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return rootOptions{}, err
	}
	return rootOptions{Config: config.DefaultPath(cwd)}, nil
}

func loadConfig(opts rootOptions, scope config.Scope) (*config.File, error) {
	cfg, err := config.Load(opts.Config, opts.Explicit)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(scope); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newAppflowClient(cfg *config.File) (*appflow.APIClient, error) {
	c, err := appflow.New(appflow.Options{
		APIURL:     cfg.Appflow.APIURL,
		GraphQLURL: cfg.Appflow.GraphQLURL,
		AppID:      cfg.Appflow.AppID,
		Token:      cfg.Appflow.Token,
		Transport:  appflow.NewHTTPTransport(cfg.Appflow.HTTPTimeout),
	})
	if err != nil {
		return nil, errors.Wrap(err, "appflow client")
	}
	return c, nil
}

func supervisorOptions(cfg *config.File) supervise.Options {
	return supervise.Options{
		SSID:                cfg.Network.SSID,
		Password:            cfg.Network.Password,
		ProductionChannelID: cfg.Appflow.ProductionChannelID,
		ConnectionInterval:  cfg.Timing.ConnectionInterval,
		PollInterval:        cfg.Timing.PollInterval,
		ButtonInterval:      cfg.Timing.ButtonInterval,
		LEDInterval:         cfg.Timing.LEDInterval,
		DebounceSamples:     cfg.Device.DebounceSamples,
		JoinTimeout:         cfg.Timing.JoinTimeout,
		JoinRetry:           cfg.Timing.JoinRetry,
		RequestTimeout:      cfg.Appflow.HTTPTimeout,
		DeployTimeout:       cfg.Timing.DeployTimeout,
		RestartDelay:        cfg.Timing.RestartDelay,
		Rearm:               cfg.RearmEnabled(),
	}
}

func openBoard(hardware string, cfg *config.File) (*gpio.Board, error) {
	pull, err := gpio.ParsePull(cfg.Device.Pull)
	if err != nil {
		return nil, err
	}
	switch hardware {
	case "rpio":
		return gpio.OpenBoard(gpio.BoardOptions{ButtonPin: cfg.Device.ButtonPin, LEDPin: cfg.Device.LEDPin, Pull: pull})
	case "sim":
		board, _, _ := gpio.NewSimBoard(pull)
		return board, nil
	default:
		return nil, errors.Errorf("unknown hardware backend %q (want rpio|sim)", hardware)
	}
}

// startBus runs b on eg and waits until its handlers are subscribed, so no
// early event is dropped.
func startBus(ctx context.Context, eg *errgroup.Group, b *bus.Bus) error {
	eg.Go(func() error {
		err := b.Run(ctx)
		if stderrors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	select {
	case <-b.Running():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ignoreCanceled(err error) error {
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// addServeFlags registers the flags shared by the long-running commands.
func addServeFlags(fs *pflag.FlagSet, listen *string) {
	fs.StringVar(listen, "listen", "", "Status server address, e.g. :8089 (overrides config listen)")
}
