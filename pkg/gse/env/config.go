// Package env configures and assembles the GSE services.
package env

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/robotalks/gse.go/pkg/gse"
	"github.com/robotalks/gse.go/pkg/telem"
)

// Config provides all options of the GSE services.
type Config struct {
	// MQTTBrokerURL specifies the telemetry broker.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt_url"`
	// Subject identifies the writers of this instance.
	Subject string `yaml:"subject"`

	AnalogChannels int     `yaml:"analog_channels"`
	Valves         int     `yaml:"valves"`
	BatchSize      int     `yaml:"batch_size"`
	CommitEvery    int     `yaml:"commit_every"`
	SampleRate     float64 `yaml:"sample_rate"`

	// Channel names, patterns take the 1-based channel number.
	AnalogPattern  string `yaml:"analog_pattern"`
	AnalogIndex    string `yaml:"analog_index"`
	ControlPattern string `yaml:"control_pattern"`
	AckPattern     string `yaml:"ack_pattern"`
	AckIndex       string `yaml:"ack_index"`
	Trigger        string `yaml:"trigger"`

	EmptyPolicy       string        `yaml:"empty_policy"`
	WatchdogInterval  time.Duration `yaml:"watchdog_interval"`
	WatchdogThreshold time.Duration `yaml:"watchdog_threshold"`
	ShutdownRetries   int           `yaml:"shutdown_retries"`
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay"`

	// DAQ selects the DAQ backend, only "sim" is available.
	DAQ string `yaml:"daq"`
	// Provision creates missing channels on startup.
	Provision bool `yaml:"provision"`

	// FCLinkURL enables the FC link, e.g. serial:///dev/ttyUSB0?baud=115200.
	FCLinkURL string `yaml:"fc_link"`
	FCIndex   string `yaml:"fc_index"`
	FCSample  string `yaml:"fc_sample"`
}

// ConfigFileEnv names the environment variable of the YAML config file.
const ConfigFileEnv = "GSE_CONFIG"

var defaultConfig = Config{
	MQTTBrokerURL:     "mqtt://localhost:1883/gse/",
	AnalogChannels:    80,
	Valves:            24,
	BatchSize:         5,
	CommitEvery:       1200,
	SampleRate:        200,
	AnalogPattern:     "gse_ai_%d",
	AnalogIndex:       "gse_ai_time",
	ControlPattern:    "gse_doc_%d",
	AckPattern:        "gse_doa_%d",
	AckIndex:          "gse_doa_time",
	Trigger:           telem.ActiveRangeSetChannel,
	EmptyPolicy:       "raw",
	WatchdogInterval:  gse.DefaultWatchdogInterval,
	WatchdogThreshold: gse.DefaultWatchdogThreshold,
	ShutdownRetries:   gse.DefaultShutdownRetries,
	ConnectRetryDelay: 5 * time.Second,
	DAQ:               "sim",
	FCIndex:           "fc_time",
	FCSample:          "fc_sample",
}

func init() {
	defaultConfig.applyEnv()
}

func (c *Config) applyEnv() {
	if val := os.Getenv("GSE_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := os.Getenv("GSE_SUBJECT"); val != "" {
		c.Subject = val
	}
	if val := os.Getenv("GSE_FC_LINK"); val != "" {
		c.FCLinkURL = val
	}
	if val := os.Getenv("GSE_DAQ"); val != "" {
		c.DAQ = val
	}
	if val := os.Getenv("GSE_EMPTY_POLICY"); val != "" {
		c.EmptyPolicy = val
	}
	if val, err := strconv.ParseBool(os.Getenv("GSE_PROVISION")); err == nil {
		c.Provision = val
	}
}

// Setup loads the optional .env files and the YAML file named by
// GSE_CONFIG into the defaults, then registers command line flags.
// Precedence: flags, environment, config file, defaults.
func Setup(dotenv ...string) error {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, fn := range dotenv {
		if _, err := os.Stat(fn); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(fn); err != nil {
			return fmt.Errorf("load %s: %w", fn, err)
		}
	}
	if fn := os.Getenv(ConfigFileEnv); fn != "" {
		if err := defaultConfig.LoadFile(fn); err != nil {
			return err
		}
	}
	defaultConfig.applyEnv()
	SetupFlags()
	return nil
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL of telemetry")
	flag.StringVar(&defaultConfig.Subject, "subject", defaultConfig.Subject, "Writer subject, default gse:<machine-id>")
	flag.IntVar(&defaultConfig.AnalogChannels, "analog-channels", defaultConfig.AnalogChannels, "Number of analog channels")
	flag.IntVar(&defaultConfig.Valves, "valves", defaultConfig.Valves, "Number of valves")
	flag.IntVar(&defaultConfig.BatchSize, "batch-size", defaultConfig.BatchSize, "Analog samples per batch")
	flag.IntVar(&defaultConfig.CommitEvery, "commit-every", defaultConfig.CommitEvery, "Commit analog data every N batches")
	flag.StringVar(&defaultConfig.EmptyPolicy, "empty-policy", defaultConfig.EmptyPolicy, "Publishing without calibrations: raw or suppress")
	flag.DurationVar(&defaultConfig.WatchdogThreshold, "ack-commit-after", defaultConfig.WatchdogThreshold, "Commit acks when pending longer than this")
	flag.StringVar(&defaultConfig.DAQ, "daq", defaultConfig.DAQ, "DAQ backend")
	flag.BoolVar(&defaultConfig.Provision, "provision", defaultConfig.Provision, "Create missing channels")
	flag.StringVar(&defaultConfig.FCLinkURL, "fc", defaultConfig.FCLinkURL, "FC link URL, disabled if empty")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile overrides the fields present in a YAML file.
func (c *Config) LoadFile(fn string) error {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}
	if err = yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("config %s: %w", fn, err)
	}
	return nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.AnalogChannels <= 0 {
		return fmt.Errorf("invalid analog channel count %d", c.AnalogChannels)
	}
	if c.Valves <= 0 || c.Valves > 32 {
		return fmt.Errorf("invalid valve count %d, must be 1-32", c.Valves)
	}
	if c.BatchSize <= 0 || c.CommitEvery <= 0 {
		return fmt.Errorf("batch size and commit interval must be positive")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %g", c.SampleRate)
	}
	if _, err := gse.ParseEmptyPolicy(c.EmptyPolicy); err != nil {
		return err
	}
	if c.DAQ != "sim" {
		return fmt.Errorf("unsupported DAQ %q", c.DAQ)
	}
	return nil
}

// ChannelNames expands a pattern into count names numbered from 1.
func ChannelNames(pattern string, count int) []string {
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf(pattern, i+1)
	}
	return names
}
