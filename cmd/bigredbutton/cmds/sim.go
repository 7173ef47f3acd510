package cmds

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/bigredbutton/pkg/appflow"
	"github.com/go-go-golems/bigredbutton/pkg/appflow/appflowtest"
	"github.com/go-go-golems/bigredbutton/pkg/bus"
	"github.com/go-go-golems/bigredbutton/pkg/config"
	"github.com/go-go-golems/bigredbutton/pkg/gpio"
	"github.com/go-go-golems/bigredbutton/pkg/metrics"
	"github.com/go-go-golems/bigredbutton/pkg/netlink"
	"github.com/go-go-golems/bigredbutton/pkg/server"
	"github.com/go-go-golems/bigredbutton/pkg/supervise"
	"github.com/go-go-golems/bigredbutton/pkg/tui"
	"github.com/go-go-golems/bigredbutton/pkg/tui/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// simDevice exposes the simulated pins and link to the UI.
type simDevice struct {
	sup    *supervise.Supervisor
	button *gpio.SimButton
	led    *gpio.SimPin
	link   *netlink.SimLink
}

var _ tui.Device = (*simDevice)(nil)

func (d *simDevice) View() tui.DeviceView {
	return tui.DeviceView{
		Snapshot:      d.sup.State().Snapshot(),
		Mode:          string(d.sup.Dispatcher().Mode()),
		LEDOn:         d.led.Read() == gpio.High,
		ButtonPressed: d.button.Pressed(),
		LinkUp:        d.link.IsConnected(),
	}
}

func (d *simDevice) ToggleButton() bool {
	if d.button.Pressed() {
		d.button.Release()
		return false
	}
	d.button.Press()
	return true
}

func (d *simDevice) ToggleLink() bool { return d.link.Toggle() }

func newSimCmd() *cobra.Command {
	var fakeAPI bool
	var promoteEvery time.Duration
	var joinDelay time.Duration
	var listen string
	var altScreen bool

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the device on simulated pins and network in a terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			scope := config.Scope(0)
			if !fakeAPI {
				scope = config.NeedAppflow
			}
			cfg, err := loadConfig(opts, scope)
			if err != nil {
				return err
			}
			if cfg.Network.SSID == "" {
				cfg.Network.SSID = "simulated"
			}
			if listen != "" {
				cfg.Listen = listen
			}

			var (
				client appflow.Client
				fake   *appflowtest.Service
			)
			if fakeAPI {
				fake = appflowtest.New()
				fake.SetProduction("build-1")
				fake.Promote("build-2")
				fake.SetDeployDelay(750 * time.Millisecond)
				client = fake
				cfg.Appflow.ProductionChannelID = appflowtest.ProductionChannelID
			} else {
				c, err := newAppflowClient(cfg)
				if err != nil {
					return err
				}
				client = c
			}

			pull, err := gpio.ParsePull(cfg.Device.Pull)
			if err != nil {
				return err
			}
			board, button, led := gpio.NewSimBoard(pull)
			link := netlink.NewSimLink("192.168.4.20", false)

			b, err := bus.NewInMemoryBus()
			if err != nil {
				return err
			}
			history := bus.NewHistory(200)
			history.Register(b, "history")
			recorder := metrics.New()
			recorder.Register(b, "metrics")

			sup, err := supervise.New(supervisorOptions(cfg), supervise.Deps{
				Joiner: &netlink.SimJoiner{Link: link, Delay: joinDelay},
				Prober: netlink.StaticProber{Address: "203.0.113.10"},
				Client: client,
				Board:  board,
				Events: bus.NewEmitter(b.Publisher),
			})
			if err != nil {
				return err
			}

			// zerolog would scribble over the UI; events show up in the log pane.
			if f := cmd.Flags().Lookup("log-file"); f == nil || f.Value.String() == "" {
				zerolog.SetGlobalLevel(zerolog.Disabled)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			programOptions := []tea.ProgramOption{
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			}
			if altScreen {
				programOptions = append(programOptions, tea.WithAltScreen())
			}
			program := tea.NewProgram(models.NewSimModel(&simDevice{sup: sup, button: button, led: led, link: link}), programOptions...)
			tui.RegisterUIForwarder(b, program)

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
			if fake != nil && promoteEvery > 0 {
				eg.Go(func() error {
					return promoteLoop(egCtx, fake, promoteEvery)
				})
			}
			eg.Go(func() error {
				_, err := program.Run()
				cancel()
				return ignoreCanceled(err)
			})

			if err := ignoreCanceled(eg.Wait()); err != nil {
				return errors.Wrap(err, "sim")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fakeAPI, "fake-api", true, "Use an in-memory build service instead of the remote API")
	cmd.Flags().DurationVar(&promoteEvery, "promote-every", 30*time.Second, "With --fake-api, promote a new Development build this often (0 disables)")
	cmd.Flags().DurationVar(&joinDelay, "join-delay", 2*time.Second, "How long joining the simulated network takes")
	addServeFlags(cmd.Flags(), &listen)
	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "Use the terminal alternate screen buffer")
	return cmd
}

func promoteLoop(ctx context.Context, svc *appflowtest.Service, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for n := 3; ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			svc.Promote(fmt.Sprintf("build-%d", n))
		}
	}
}
