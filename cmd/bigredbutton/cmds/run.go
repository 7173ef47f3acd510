package cmds

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/config"
	"github.com/go-go-golems/bigredbutton/pkg/metrics"
	"github.com/go-go-golems/bigredbutton/pkg/netlink"
	"github.com/go-go-golems/bigredbutton/pkg/server"
	"github.com/go-go-golems/bigredbutton/pkg/supervise"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd() *cobra.Command {
	var hardware string
	var listen string
	var iface string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the device until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts, config.NeedNetwork|config.NeedAppflow)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if iface != "" {
				cfg.Network.Interface = iface
			}

			client, err := newAppflowClient(cfg)
			if err != nil {
				return err
			}
			board, err := openBoard(hardware, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := board.Close(); err != nil {
					log.Warn().Err(err).Msg("close board")
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := bus.NewInMemoryBus()
			if err != nil {
				return err
			}
			history := bus.NewHistory(200)
			history.Register(b, "history")
			recorder := metrics.New()
			recorder.Register(b, "metrics")

			sup, err := supervise.New(supervisorOptions(cfg), supervise.Deps{
				Joiner: &netlink.HostJoiner{Interface: cfg.Network.Interface},
				Prober: &netlink.HTTPProber{URL: cfg.Network.ProbeURL},
				Client: client,
				Board:  board,
				Events: bus.NewEmitter(b.Publisher),
			})
			if err != nil {
				return err
			}

			eg, egCtx := errgroup.WithContext(ctx)
			if err := startBus(egCtx, eg, b); err != nil {
				return errors.Wrap(eg.Wait(), "event bus")
			}
			eg.Go(func() error {
				return sup.Run(egCtx)
			})
			if cfg.Listen != "" {
				srv, err := server.New(server.Options{State: sup.State(), History: history, Metrics: recorder})
				if err != nil {
					return err
				}
				eg.Go(func() error {
					return srv.Run(egCtx, cfg.Listen)
				})
			}

			log.Info().
				Str("hardware", hardware).
				Str("app", client.AppID()).
				Str("channel", cfg.Appflow.ProductionChannelID).
				Msg("bigredbutton running")

			if err := ignoreCanceled(eg.Wait()); err != nil {
				return errors.Wrap(err, "run")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&hardware, "hardware", "rpio", "GPIO backend: rpio|sim")
	addServeFlags(cmd.Flags(), &listen)
	cmd.Flags().StringVar(&iface, "interface", "", "Network interface to watch (overrides config network.interface)")
	return cmd
}

