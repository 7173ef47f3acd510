package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = ".bigredbutton.yaml"

type File struct {
	Network Network `yaml:"network"`
	Appflow Appflow `yaml:"appflow"`
	Device  Device  `yaml:"device"`
	Timing  Timing  `yaml:"timing"`

	// Listen is the status server address; empty disables it.
	Listen string `yaml:"listen,omitempty"`
	Rearm  *bool  `yaml:"rearm,omitempty"`
}

type Network struct {
	SSID      string `yaml:"ssid"`
	Password  string `yaml:"password"`
	Interface string `yaml:"interface,omitempty"`
	ProbeURL  string `yaml:"probe_url,omitempty"`
}

type Appflow struct {
	APIURL              string        `yaml:"api_url"`
	GraphQLURL          string        `yaml:"graphql_url"`
	AppID               string        `yaml:"app_id"`
	Token               string        `yaml:"token"`
	ProductionChannelID string        `yaml:"production_channel_id"`
	HTTPTimeout         time.Duration `yaml:"http_timeout,omitempty"`
}

type Device struct {
	ButtonPin       int    `yaml:"button_pin,omitempty"`
	LEDPin          int    `yaml:"led_pin,omitempty"`
	Pull            string `yaml:"pull,omitempty"`
	DebounceSamples int    `yaml:"debounce_samples,omitempty"`
}

type Timing struct {
	PollInterval       time.Duration `yaml:"poll_interval,omitempty"`
	LEDInterval        time.Duration `yaml:"led_interval,omitempty"`
	ConnectionInterval time.Duration `yaml:"connection_interval,omitempty"`
	ButtonInterval     time.Duration `yaml:"button_interval,omitempty"`
	JoinTimeout        time.Duration `yaml:"join_timeout,omitempty"`
	JoinRetry          time.Duration `yaml:"join_retry,omitempty"`
	DeployTimeout      time.Duration `yaml:"deploy_timeout,omitempty"`
	RestartDelay       time.Duration `yaml:"restart_delay,omitempty"`
}

// envBindings maps viper keys to the environment variables that override
// the file.
var envBindings = []struct {
	key string
	env string
	set func(*File, string)
}{
	{"ssid", "SSID", func(f *File, v string) { f.Network.SSID = v }},
	{"ssid_password", "SSID_PASSWORD", func(f *File, v string) { f.Network.Password = v }},
	{"api_url", "API_URL", func(f *File, v string) { f.Appflow.APIURL = v }},
	{"graphql_url", "GRAPHQL_URL", func(f *File, v string) { f.Appflow.GraphQLURL = v }},
	{"app_id", "APP_ID", func(f *File, v string) { f.Appflow.AppID = v }},
	{"appflow_token", "APPFLOW_TOKEN", func(f *File, v string) { f.Appflow.Token = v }},
	{"production_channel_id", "PRODUCTION_CHANNEL_ID", func(f *File, v string) { f.Appflow.ProductionChannelID = v }},
}

func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultConfigFilename)
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	return &cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

// Load reads path (which must exist when explicit is set), applies the
// environment and fills defaults. It does not validate.
func Load(path string, explicit bool) (*File, error) {
	var (
		cfg *File
		err error
	)
	if explicit {
		cfg, err = LoadFromFile(path)
	} else {
		cfg, err = LoadOptional(path)
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(viper.New())
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyEnv overrides file values with any non-empty bound environment
// variable.
func (f *File) ApplyEnv(v *viper.Viper) {
	for _, b := range envBindings {
		_ = v.BindEnv(b.key, b.env)
		if val := strings.TrimSpace(v.GetString(b.key)); val != "" {
			b.set(f, val)
		}
	}
}

func (f *File) ApplyDefaults() {
	if f.Appflow.HTTPTimeout <= 0 {
		f.Appflow.HTTPTimeout = 15 * time.Second
	}
	if f.Device.ButtonPin == 0 {
		f.Device.ButtonPin = 15
	}
	if f.Device.LEDPin == 0 {
		f.Device.LEDPin = 25
	}
	if f.Device.Pull == "" {
		f.Device.Pull = "up"
	}
	if f.Device.DebounceSamples <= 0 {
		f.Device.DebounceSamples = 1
	}
	t := &f.Timing
	if t.PollInterval <= 0 {
		t.PollInterval = 5 * time.Second
	}
	if t.LEDInterval <= 0 {
		t.LEDInterval = 500 * time.Millisecond
	}
	if t.ConnectionInterval <= 0 {
		t.ConnectionInterval = 500 * time.Millisecond
	}
	if t.ButtonInterval <= 0 {
		t.ButtonInterval = 50 * time.Millisecond
	}
	if t.JoinTimeout <= 0 {
		t.JoinTimeout = 30 * time.Second
	}
	if t.JoinRetry <= 0 {
		t.JoinRetry = 5 * time.Second
	}
	if t.DeployTimeout <= 0 {
		t.DeployTimeout = 30 * time.Second
	}
	if t.RestartDelay <= 0 {
		t.RestartDelay = time.Second
	}
	if f.Rearm == nil {
		rearm := true
		f.Rearm = &rearm
	}
}

func (f *File) RearmEnabled() bool {
	return f.Rearm == nil || *f.Rearm
}

// Scope selects which groups of required values Validate checks.
type Scope uint8

const (
	NeedNetwork Scope = 1 << iota
	NeedAppflow
)

// Validate reports every missing required value at once, by the name of the
// environment variable that would supply it.
func (f *File) Validate(scope Scope) error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if scope&NeedNetwork != 0 {
		check("SSID", f.Network.SSID)
		check("SSID_PASSWORD", f.Network.Password)
	}
	if scope&NeedAppflow != 0 {
		check("API_URL", f.Appflow.APIURL)
		check("GRAPHQL_URL", f.Appflow.GraphQLURL)
		check("APP_ID", f.Appflow.AppID)
		check("APPFLOW_TOKEN", f.Appflow.Token)
		check("PRODUCTION_CHANNEL_ID", f.Appflow.ProductionChannelID)
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	switch strings.ToLower(f.Device.Pull) {
	case "", "up", "down":
	default:
		return errors.Errorf("device.pull must be up or down, got %q", f.Device.Pull)
	}
	return nil
}
