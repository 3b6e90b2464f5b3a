// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"uart-assist/internal/model"
)

// Version is the release reported by --version
var Version = "1.0.0"

// Action is what the process was asked to do
type Action int

const (
	ActionRun Action = iota
	ActionHelp
	ActionVersion
	ActionListPorts
)

// Config represents the application configuration
type Config struct {
	Test     TestConfig     `mapstructure:"test"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Database DatabaseConfig `mapstructure:"database"`
	App      AppConfig      `mapstructure:"app"`

	Action Action `mapstructure:"-"`
}

// TestConfig selects the test mode and its parameters
type TestConfig struct {
	Mode     string `mapstructure:"mode"`
	Send     string `mapstructure:"send"`
	Interval int    `mapstructure:"interval"`
	Count    int    `mapstructure:"count"`
	Format   string `mapstructure:"format"`
	File     string `mapstructure:"file"`
}

// SerialConfig represents serial port configuration
type SerialConfig struct {
	Device  string `mapstructure:"device"`
	Baud    int    `mapstructure:"baud"`
	Framing string `mapstructure:"framing"`
}

// OutputConfig controls the observation lines
type OutputConfig struct {
	Timestamp bool `mapstructure:"timestamp"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MonitorConfig represents the optional live monitor server
type MonitorConfig struct {
	Listen         string        `mapstructure:"listen"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig represents the optional run history store
type DatabaseConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"mode":        "test.mode",
	"send":        "test.send",
	"interval":    "test.interval",
	"count":       "test.count",
	"format":      "test.format",
	"file":        "test.file",
	"device":      "serial.device",
	"baud":        "serial.baud",
	"config":      "serial.framing",
	"timestamp":   "output.timestamp",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
	"listen":      "monitor.listen",
	"history-dsn": "database.dsn",
}

// NewFlagSet registers the command line options
func NewFlagSet(program string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	fs.StringP("mode", "m", "", "Working mode: loopback/send/recv/file")
	fs.StringP("device", "d", "/dev/ttyAMA0", "Serial port device")
	fs.IntP("baud", "b", 115200, "Baud rate")
	fs.StringP("config", "c", "8N1", "UART config: databits parity(N/E/O) stopbits, e.g. 8N1, 7E1, 8O2")
	fs.StringP("send", "s", "123456", "Send string (loopback/send)")
	fs.IntP("interval", "i", 1000, "Send interval in milliseconds, 1-10000 (send)")
	fs.IntP("count", "n", 0, "Send count, 0 means infinite (send)")
	fs.StringP("format", "f", "ascii", "Send/print format: ascii/hex; hex parses the send string as packed hex")
	fs.StringP("file", "F", "", "JSON script file (file)")
	fs.Bool("timestamp", false, "Prefix each output line with a timestamp")
	fs.String("config-file", "", "Optional YAML configuration file")
	fs.String("log-level", "warn", "Log level: debug/info/warn/error")
	fs.String("log-format", "console", "Log format: console/json")
	fs.String("listen", "", "Serve the live monitor on this address, e.g. :8084")
	fs.String("history-dsn", "", "PostgreSQL DSN for run history")
	fs.Bool("list-ports", false, "List serial ports and exit")
	fs.BoolP("version", "V", false, "Show version and exit")
	fs.BoolP("help", "h", false, "Show this help message")
	return fs
}

// Load parses args and merges them with environment variables, an optional
// config file and defaults. Precedence is flag > env > file > default.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("uart-assist")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfig, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", model.ErrConfig, fs.Arg(0))
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("UART_ASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	if err := readConfigFile(v, fs); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: unable to decode config: %v", model.ErrConfig, err)
	}

	switch {
	case flagSet(fs, "help"):
		config.Action = ActionHelp
		return &config, nil
	case flagSet(fs, "version"):
		config.Action = ActionVersion
		return &config, nil
	case flagSet(fs, "list-ports"):
		config.Action = ActionListPorts
		return &config, nil
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet) error {
	path, _ := fs.GetString("config-file")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: error reading config file: %v", model.ErrConfig, err)
		}
		return nil
	}

	v.SetConfigName("uart-assist")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/uart-assist")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("%w: error reading config file: %v", model.ErrConfig, err)
	}
	return nil
}

func flagSet(fs *pflag.FlagSet, name string) bool {
	on, _ := fs.GetBool(name)
	return on
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Test defaults
	v.SetDefault("test.mode", "")
	v.SetDefault("test.send", "123456")
	v.SetDefault("test.interval", 1000)
	v.SetDefault("test.count", 0)
	v.SetDefault("test.format", "ascii")
	v.SetDefault("test.file", "")

	// Serial defaults
	v.SetDefault("serial.device", "/dev/ttyAMA0")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.framing", "8N1")

	v.SetDefault("output.timestamp", false)

	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Monitor defaults
	v.SetDefault("monitor.listen", "")
	v.SetDefault("monitor.read_timeout", "30s")
	v.SetDefault("monitor.write_timeout", "30s")
	v.SetDefault("monitor.idle_timeout", "120s")
	v.SetDefault("monitor.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")

	v.SetDefault("app.name", "uart-assist")
	v.SetDefault("app.version", Version)
}

// Validate rejects any configuration that cannot start a run
func (c *Config) Validate() error {
	mode, err := c.TestMode()
	if err != nil {
		return err
	}
	if _, err := c.OutputFormat(); err != nil {
		return err
	}
	if _, err := c.Framing(); err != nil {
		return err
	}
	if c.Serial.Device == "" {
		return fmt.Errorf("%w: serial.device is required", model.ErrConfig)
	}
	if c.Test.Interval < 1 || c.Test.Interval > 10000 {
		return fmt.Errorf("%w: invalid interval %d (should be 1-10000)", model.ErrConfig, c.Test.Interval)
	}
	if c.Test.Count < 0 {
		return fmt.Errorf("%w: invalid count %d (should be >= 0)", model.ErrConfig, c.Test.Count)
	}
	if mode == model.ModeFile && c.Test.File == "" {
		return fmt.Errorf("%w: file mode requires -F/--file", model.ErrConfig)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if c.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("%w: logging.level must be one of: %v", model.ErrConfig, validLevels)
	}

	return nil
}

// TestMode returns the selected mode; the mode is mandatory
func (c *Config) TestMode() (model.TestMode, error) {
	if c.Test.Mode == "" {
		return "", fmt.Errorf("%w: mode is required (-m loopback/send/recv/file)", model.ErrConfig)
	}
	return model.ParseTestMode(c.Test.Mode)
}

// OutputFormat returns the payload and display format
func (c *Config) OutputFormat() (model.OutputFormat, error) {
	return model.ParseOutputFormat(strings.ToLower(c.Test.Format))
}

// Framing combines the baud rate with the 8N1-style notation
func (c *Config) Framing() (model.Framing, error) {
	dataBits, parity, stopBits, err := model.ParseFraming(c.Serial.Framing)
	if err != nil {
		return model.Framing{}, err
	}
	framing := model.Framing{
		Baud:     c.Serial.Baud,
		DataBits: dataBits,
		Parity:   parity,
		StopBits: stopBits,
	}
	if err := framing.Validate(); err != nil {
		return model.Framing{}, err
	}
	return framing, nil
}

// IntervalDuration returns the send interval
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Test.Interval) * time.Millisecond
}

// MonitorEnabled reports whether the live monitor should run
func (c *Config) MonitorEnabled() bool {
	return c.Monitor.Listen != ""
}

// HistoryEnabled reports whether runs are recorded in the database
func (c *Config) HistoryEnabled() bool {
	return c.Database.DSN != ""
}

// Usage returns the help text
func Usage(program string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s version %s\n\n", program, Version)
	fmt.Fprintf(&sb, "Usage: %s [OPTIONS]\n\n", program)
	sb.WriteString("Options:\n")
	sb.WriteString(NewFlagSet(program).FlagUsages())
	sb.WriteString("\nExamples:\n")
	fmt.Fprintf(&sb, "  %s -m loopback -d /dev/ttyUSB0 -s \"Hello\"\n", program)
	fmt.Fprintf(&sb, "  %s -m loopback -d /dev/ttyUSB0 -s \"af37126b4A\" -f hex\n", program)
	fmt.Fprintf(&sb, "  %s -m send -d /dev/ttyUSB0 -s \"Hello\" -i 500 -n 10\n", program)
	fmt.Fprintf(&sb, "  %s -m send -d /dev/ttyUSB0 -s \"af37126b4A\" -f hex -i 1000\n", program)
	fmt.Fprintf(&sb, "  %s -m recv -d /dev/ttyUSB0 -f hex\n", program)
	fmt.Fprintf(&sb, "  %s -m file -d /dev/ttyUSB0 -F script.json\n", program)
	return sb.String()
}
