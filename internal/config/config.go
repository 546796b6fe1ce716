// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig                  `mapstructure:"app"`
	Server     ServerConfig               `mapstructure:"server"`
	Chains     map[string]ChainConfig     `mapstructure:"chains"`
	Connectors map[string]ConnectorConfig `mapstructure:"connectors"`
	Telemetry  TelemetryConfig            `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFile     string `mapstructure:"log_file"`
}

// ServerConfig holds process-wide resources.
type ServerConfig struct {
	NonceDBPath string `mapstructure:"nonce_db_path"` // empty keeps nonces in memory
	HealthPort  int    `mapstructure:"health_port"`
}

// ChainConfig holds the settings shared by every network of an EVM chain.
type ChainConfig struct {
	ManualGasPriceGwei   float64                  `mapstructure:"manual_gas_price"`
	GasLimitTransaction  uint64                   `mapstructure:"gas_limit_transaction"`
	NativeCurrencySymbol string                   `mapstructure:"native_currency_symbol"`
	WrappedNativeAddress string                   `mapstructure:"wrapped_native_address"` // optional, enables native-coin routes
	Networks             map[string]NetworkConfig `mapstructure:"networks"`
}

// NetworkConfig holds node and token-list settings for one network of a chain.
type NetworkConfig struct {
	Name                    string        `mapstructure:"name"`
	ChainID                 uint64        `mapstructure:"chain_id"`
	NodeURL                 string        `mapstructure:"node_url"`
	TokenListSource         string        `mapstructure:"token_list_source"`
	TokenListType           string        `mapstructure:"token_list_type"`            // FILE or URL
	GasPriceRefreshInterval time.Duration `mapstructure:"gas_price_refresh_interval"` // zero disables refresh
	MaxGasPriceGwei         float64       `mapstructure:"max_gas_price"`
	RequestsPerSecond       float64       `mapstructure:"requests_per_second"`
	RequestBurst            int           `mapstructure:"request_burst"`
}

// ManualGasPrice returns the configured fallback gas price in gwei.
func (c ChainConfig) ManualGasPrice() decimal.Decimal {
	return decimal.NewFromFloat(c.ManualGasPriceGwei)
}

// WrappedNative returns the ERC20 wrapper of the native coin, zero if unset.
func (c ChainConfig) WrappedNative() common.Address {
	if !common.IsHexAddress(c.WrappedNativeAddress) {
		return common.Address{}
	}
	return common.HexToAddress(c.WrappedNativeAddress)
}

// MaxGasPrice returns the gas price cap in gwei, zero when unset.
func (n NetworkConfig) MaxGasPrice() decimal.Decimal {
	return decimal.NewFromFloat(n.MaxGasPriceGwei)
}

// ContractAddresses holds the router for one (chain, network).
type ContractAddresses struct {
	RouterAddress string `mapstructure:"router_address"`
}

// ConnectorConfig holds the settings of one AMM connector.
type ConnectorConfig struct {
	AllowedSlippage  string        `mapstructure:"allowed_slippage"` // "<num>/<den>", read lazily
	GasLimitEstimate uint64        `mapstructure:"gas_limit_estimate"`
	TTL              time.Duration `mapstructure:"ttl"`
	FactoryAddress   string        `mapstructure:"factory_address"`
	InitCodeHash     string        `mapstructure:"init_code_hash"`
	FeeBps           int64         `mapstructure:"fee_bps"`

	// chain -> network -> addresses
	ContractAddresses map[string]map[string]ContractAddresses `mapstructure:"contract_addresses"`
}

// RouterAddress returns the router for (chain, network).
func (c ConnectorConfig) RouterAddress(chain, network string) (common.Address, bool) {
	byNetwork, ok := c.ContractAddresses[chain]
	if !ok {
		return common.Address{}, false
	}
	addrs, ok := byNetwork[network]
	if !ok || !common.IsHexAddress(addrs.RouterAddress) {
		return common.Address{}, false
	}
	return common.HexToAddress(addrs.RouterAddress), true
}

// FactoryAddressHex returns the pair factory address.
func (c ConnectorConfig) FactoryAddressHex() common.Address {
	return common.HexToAddress(c.FactoryAddress)
}

// InitCodeHashHex returns the pair init-code hash used for CREATE2 derivation.
func (c ConnectorConfig) InitCodeHashHex() common.Hash {
	return common.HexToHash(c.InitCodeHash)
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	TraceProvider string `mapstructure:"trace_provider"` // zipkin, otlp-grpc, otlp-http, console or none
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`  // trace exporter endpoint

	// MetricsEndpoint enables OTLP metric push alongside Prometheus.
	MetricsEndpoint string `mapstructure:"metrics_endpoint"`
	MetricsInsecure bool   `mapstructure:"metrics_insecure"`
	PrometheusPort  int    `mapstructure:"prometheus_port"`
}

// defaultFeeBps is the Uniswap V2 swap fee.
const defaultFeeBps = 30

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Connectors declared in the file get the standard pool fee unless they
	// set fee_bps, which may be zero.
	for name := range v.GetStringMap("connectors") {
		v.SetDefault("connectors."+name+".fee_bps", defaultFeeBps)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "AMM_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "AMM_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "AMM_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("app.log_file", "AMM_LOG_FILE")

	v.BindEnv("server.nonce_db_path", "AMM_NONCE_DB_PATH")
	v.BindEnv("server.health_port", "AMM_HEALTH_PORT")

	v.BindEnv("chains.dfkchain.networks.mainnet.node_url", "AMM_DFKCHAIN_NODE_URL")
	v.BindEnv("chains.klaytn.networks.mainnet.node_url", "AMM_KLAYTN_NODE_URL")

	v.BindEnv("telemetry.enabled", "AMM_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "AMM_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "AMM_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.trace_provider", "AMM_OTEL_TRACE_PROVIDER")
	v.BindEnv("telemetry.metrics_endpoint", "AMM_OTEL_METRICS_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "amm-connector")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.health_port", 8081)

	// DFK Chain
	v.SetDefault("chains.dfkchain.manual_gas_price", 30)
	v.SetDefault("chains.dfkchain.gas_limit_transaction", 3000000)
	v.SetDefault("chains.dfkchain.native_currency_symbol", "JEWEL")
	v.SetDefault("chains.dfkchain.networks.mainnet.name", "mainnet")
	v.SetDefault("chains.dfkchain.networks.mainnet.chain_id", 53935)
	v.SetDefault("chains.dfkchain.networks.mainnet.node_url", "https://subnets.avax.network/defi-kingdoms/dfk-chain/rpc")
	v.SetDefault("chains.dfkchain.networks.mainnet.token_list_type", "FILE")
	v.SetDefault("chains.dfkchain.networks.mainnet.token_list_source", "config/tokens/dfkchain.json")
	v.SetDefault("chains.dfkchain.networks.mainnet.requests_per_second", 10)
	v.SetDefault("chains.dfkchain.networks.mainnet.request_burst", 5)

	// Klaytn
	v.SetDefault("chains.klaytn.manual_gas_price", 250)
	v.SetDefault("chains.klaytn.gas_limit_transaction", 3000000)
	v.SetDefault("chains.klaytn.native_currency_symbol", "KLAY")
	v.SetDefault("chains.klaytn.networks.mainnet.name", "mainnet")
	v.SetDefault("chains.klaytn.networks.mainnet.chain_id", 8217)
	v.SetDefault("chains.klaytn.networks.mainnet.node_url", "https://public-en-cypress.klaytn.net")
	v.SetDefault("chains.klaytn.networks.mainnet.token_list_type", "FILE")
	v.SetDefault("chains.klaytn.networks.mainnet.token_list_source", "config/tokens/klaytn.json")
	v.SetDefault("chains.klaytn.networks.mainnet.requests_per_second", 10)
	v.SetDefault("chains.klaytn.networks.mainnet.request_burst", 5)

	// DFK Crystalvale
	v.SetDefault("connectors.dfk_crystalvale.allowed_slippage", "1/100")
	v.SetDefault("connectors.dfk_crystalvale.gas_limit_estimate", 150688)
	v.SetDefault("connectors.dfk_crystalvale.ttl", "300s")
	v.SetDefault("connectors.dfk_crystalvale.fee_bps", defaultFeeBps)
	v.SetDefault("connectors.dfk_crystalvale.factory_address", "0x794C07912474351b3134E6D6B3B7b3b4A07cbAAa")
	v.SetDefault("connectors.dfk_crystalvale.init_code_hash", "0x4abbeda7e0705baf5222faead952156d4eb4113795d3dd837895a00ff89f5717")
	v.SetDefault("connectors.dfk_crystalvale.contract_addresses.dfkchain.mainnet.router_address", "0x3C351E1afdd1b1BC44e931E12D4E05D6125eaeCa")

	// DFK Serendale: addresses come from the config file.
	v.SetDefault("connectors.dfk_serendale.allowed_slippage", "1/100")
	v.SetDefault("connectors.dfk_serendale.gas_limit_estimate", 150688)
	v.SetDefault("connectors.dfk_serendale.ttl", "300s")
	v.SetDefault("connectors.dfk_serendale.fee_bps", defaultFeeBps)
	v.SetDefault("connectors.dfk_serendale.init_code_hash", "0x4abbeda7e0705baf5222faead952156d4eb4113795d3dd837895a00ff89f5717")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "amm-connector")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration. A connector's allowed_slippage is
// parsed where it is used, not here.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	for chainName, chain := range c.Chains {
		if chain.ManualGasPriceGwei < 0 {
			return fmt.Errorf("chains.%s.manual_gas_price must be non-negative", chainName)
		}
		for netName, network := range chain.Networks {
			if network.NodeURL == "" {
				return fmt.Errorf("chains.%s.networks.%s.node_url is required", chainName, netName)
			}
			if network.ChainID == 0 {
				return fmt.Errorf("chains.%s.networks.%s.chain_id is required", chainName, netName)
			}
			if network.GasPriceRefreshInterval < 0 {
				return fmt.Errorf("chains.%s.networks.%s.gas_price_refresh_interval must be non-negative", chainName, netName)
			}
			switch strings.ToUpper(network.TokenListType) {
			case "FILE", "URL":
			default:
				return fmt.Errorf("chains.%s.networks.%s.token_list_type must be FILE or URL", chainName, netName)
			}
		}
	}
	for name, conn := range c.Connectors {
		if len(conn.ContractAddresses) > 0 && !common.IsHexAddress(conn.FactoryAddress) {
			return fmt.Errorf("invalid connectors.%s.factory_address: %s", name, conn.FactoryAddress)
		}
		if conn.FeeBps < 0 || conn.FeeBps >= 10000 {
			return fmt.Errorf("connectors.%s.fee_bps out of range: %d", name, conn.FeeBps)
		}
		for chainName, byNetwork := range conn.ContractAddresses {
			for netName, addrs := range byNetwork {
				if !common.IsHexAddress(addrs.RouterAddress) {
					return fmt.Errorf("invalid connectors.%s.contract_addresses.%s.%s.router_address", name, chainName, netName)
				}
			}
		}
	}
	return nil
}

// Network resolves the chain-wide and network settings for (chain, network).
func (c *Config) Network(chain, network string) (ChainConfig, NetworkConfig, bool) {
	cc, ok := c.Chains[chain]
	if !ok {
		return ChainConfig{}, NetworkConfig{}, false
	}
	nc, ok := cc.Networks[network]
	if !ok {
		return ChainConfig{}, NetworkConfig{}, false
	}
	if nc.Name == "" {
		nc.Name = network
	}
	return cc, nc, true
}
