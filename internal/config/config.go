package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pricewatcher/internal/chain"
	"pricewatcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Source    SourceConfig    `mapstructure:"source"`
	Chains    []ChainConfig   `mapstructure:"chains"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Swap      SwapConfig      `mapstructure:"swap"`
	Server    ServerConfig    `mapstructure:"server"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// SourceConfig selects and parameterises the upstream price provider.
type SourceConfig struct {
	Provider string        `mapstructure:"provider"`
	Moralis  MoralisConfig `mapstructure:"moralis"`
	Onchain  OnchainConfig `mapstructure:"onchain"`
}

// MoralisConfig covers the Moralis REST API.
type MoralisConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// OnchainConfig covers direct price-feed reads over Ethereum RPC.
type OnchainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ChainConfig declares one monitored chain and its canonical asset.
type ChainConfig struct {
	Name         string `mapstructure:"name"`
	AssetAddress string `mapstructure:"asset_address"`
	FeedAddress  string `mapstructure:"feed_address"`
}

// AlertingConfig defines trend detection and routing.
type AlertingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	TrendThreshold float64 `mapstructure:"trend_threshold"`
	OperatorEmail  string  `mapstructure:"operator_email"`
}

// SMTPConfig captures the outbound mail transport.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SwapConfig parameterises the swap-rate quote endpoint.
type SwapConfig struct {
	FeeRate      float64 `mapstructure:"fee_rate"`
	BaseAsset    string  `mapstructure:"base_asset"`
	QuoteAsset   string  `mapstructure:"quote_asset"`
	PricingChain string  `mapstructure:"pricing_chain"`
}

// ServerConfig tunes the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Target pairs a parsed chain with its configured addresses.
type Target struct {
	Chain        chain.Chain
	AssetAddress string
	FeedAddress  string
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("source.provider", "moralis")
	v.SetDefault("source.moralis.base_url", "https://deep-index.moralis.io/api/v2.2")
	v.SetDefault("source.moralis.request_timeout", "10s")
	v.SetDefault("source.onchain.request_timeout", "10s")

	v.SetDefault("chains", []map[string]any{
		{"name": "ethereum", "asset_address": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"},
		{"name": "polygon", "asset_address": "0x7D1AfA7B718fb893dB30A3aBc0Cfc608AaCfeBB0"},
	})

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.trend_threshold", 0.03)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.timeout", "10s")

	v.SetDefault("swap.fee_rate", 0.03)
	v.SetDefault("swap.base_asset", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("swap.quote_asset", "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	v.SetDefault("swap.pricing_chain", "ethereum")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}

	switch c.Source.Provider {
	case "moralis", "onchain":
	default:
		return fmt.Errorf("source.provider must be moralis or onchain, got %q", c.Source.Provider)
	}
	if c.Source.Provider == "onchain" && c.Source.Onchain.RPCURL == "" {
		return fmt.Errorf("source.onchain.rpc_url is required for the onchain provider")
	}

	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	if _, err := c.Targets(); err != nil {
		return err
	}

	if c.Swap.FeeRate < 0 || c.Swap.FeeRate >= 1 {
		return fmt.Errorf("swap.fee_rate must be in [0, 1)")
	}
	if !common.IsHexAddress(c.Swap.BaseAsset) || !common.IsHexAddress(c.Swap.QuoteAsset) {
		return fmt.Errorf("swap.base_asset and swap.quote_asset must be hex addresses")
	}
	if _, err := chain.Parse(c.Swap.PricingChain); err != nil {
		return fmt.Errorf("swap.pricing_chain: %w", err)
	}

	if c.Alerting.Enabled {
		if c.Alerting.TrendThreshold < 0 {
			return fmt.Errorf("alerting.trend_threshold cannot be negative")
		}
		if c.SMTP.Host == "" {
			return fmt.Errorf("smtp.host is required when alerting is enabled")
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from is required when alerting is enabled")
		}
		if c.Alerting.OperatorEmail == "" {
			return fmt.Errorf("alerting.operator_email is required when alerting is enabled")
		}
	}

	return nil
}

// Targets resolves the configured chain list into parsed targets.
func (c *Config) Targets() ([]Target, error) {
	targets := make([]Target, 0, len(c.Chains))
	seen := make(map[chain.Chain]bool, len(c.Chains))
	for _, cc := range c.Chains {
		parsed, err := chain.Parse(cc.Name)
		if err != nil {
			return nil, fmt.Errorf("chains: %w", err)
		}
		if seen[parsed] {
			return nil, fmt.Errorf("chains: %s configured more than once", parsed)
		}
		seen[parsed] = true
		if !common.IsHexAddress(cc.AssetAddress) {
			return nil, fmt.Errorf("chains: %s asset_address %q is not a hex address", parsed, cc.AssetAddress)
		}
		if cc.FeedAddress != "" && !common.IsHexAddress(cc.FeedAddress) {
			return nil, fmt.Errorf("chains: %s feed_address %q is not a hex address", parsed, cc.FeedAddress)
		}
		targets = append(targets, Target{
			Chain:        parsed,
			AssetAddress: cc.AssetAddress,
			FeedAddress:  cc.FeedAddress,
		})
	}
	return targets, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
