package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-go-golems/bigredbutton/pkg/appflow"
	"github.com/go-go-golems/bigredbutton/pkg/config"
	"github.com/go-go-golems/glazed/pkg/cli"
	glazedcmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type ChannelsCommand struct {
	*glazedcmds.CommandDescription

	root rootOptions
}

var _ glazedcmds.WriterCommand = (*ChannelsCommand)(nil)

func NewChannelsCommand() *ChannelsCommand {
	return &ChannelsCommand{
		CommandDescription: glazedcmds.NewCommandDescription(
			"channels",
			glazedcmds.WithShort("List the app's deploy channels and the build bound to each"),
		),
	}
}

func (c *ChannelsCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	cfg, err := loadConfig(c.root, config.NeedAppflow)
	if err != nil {
		return err
	}
	client, err := newAppflowClient(cfg)
	if err != nil {
		return err
	}

	lctx, cancel := context.WithTimeout(ctx, cfg.Appflow.HTTPTimeout)
	defer cancel()
	channels, err := client.ListChannels(lctx)
	if err != nil {
		return err
	}

	type channelInfo struct {
		appflow.Channel
		Production bool `json:"production"`
	}
	infos := make([]channelInfo, 0, len(channels))
	for _, ch := range channels {
		infos = append(infos, channelInfo{Channel: ch, Production: ch.ID != "" && ch.ID == cfg.Appflow.ProductionChannelID})
	}

	b, err := json.MarshalIndent(map[string]any{"app_id": client.AppID(), "channels": infos}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal output")
	}
	_, _ = fmt.Fprintln(w, string(b))
	return nil
}

func newChannelsCmd() *cobra.Command {
	c := NewChannelsCommand()

	cmd, err := cli.BuildCobraCommand(c, cli.WithParserConfig(cli.CobraParserConfig{AppName: "bigredbutton"}))
	cobra.CheckErr(err)

	// the glazed runner only sees its own layers; the root --config flag is
	// read here.
	prev := cmd.PreRunE
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		root, err := getRootOptions(cmd)
		if err != nil {
			return err
		}
		c.root = root
		if prev != nil {
			return prev(cmd, args)
		}
		return nil
	}
	return cmd
}
