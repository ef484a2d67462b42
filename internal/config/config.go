package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"parking-allocator/internal/parking"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Layout    LayoutConfig    `mapstructure:"layout"`
	Policy    PolicyConfig    `mapstructure:"policy"`
}

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type LayoutConfig struct {
	Levels       int `mapstructure:"levels"`
	RegularSlots int `mapstructure:"regular_slots"`
	EVSlots      int `mapstructure:"ev_slots"`
	VIPSlots     int `mapstructure:"vip_slots"`
}

// PolicyConfig keeps amounts as strings so they reach decimal.Decimal without
// passing through float64.
type PolicyConfig struct {
	DailyRates       map[string]string `mapstructure:"daily_rates"`
	MonthlyRates     map[string]string `mapstructure:"monthly_rates"`
	RegularLimit     time.Duration     `mapstructure:"regular_time_limit"`
	VIPFallbackLimit time.Duration     `mapstructure:"vip_fallback_time_limit"`
	ReEntryFee       string            `mapstructure:"re_entry_fee"`
	ReEntryWindow    time.Duration     `mapstructure:"re_entry_window"`
	PenaltyPerHour   string            `mapstructure:"penalty_per_hour"`
	WarningThreshold int               `mapstructure:"warning_threshold"`
	VIPPassDuration  time.Duration     `mapstructure:"vip_pass_duration"`
	CurrencySymbol   string            `mapstructure:"currency_symbol"`
}

// Load reads parking.yaml (if present) and PARKING_* environment overrides.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetConfigName("parking")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/parking-allocator")

	setDefaults(v)

	v.SetEnvPrefix("PARKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("telemetry.service_name", "PARKING_TELEMETRY_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.otlp_endpoint", "PARKING_TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("server.port", "PARKING_SERVER_PORT", "PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := parking.DefaultPolicy()
	layout := parking.DefaultLayout()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")

	v.SetDefault("telemetry.service_name", parking.DefaultServiceName)
	v.SetDefault("telemetry.otlp_endpoint", parking.DefaultOTLPEndpoint)

	v.SetDefault("layout.levels", layout.Levels)
	v.SetDefault("layout.regular_slots", layout.SlotsPerSection[parking.RegularSection])
	v.SetDefault("layout.ev_slots", layout.SlotsPerSection[parking.EVSection])
	v.SetDefault("layout.vip_slots", layout.SlotsPerSection[parking.VIPSection])

	for _, c := range parking.VehicleClasses {
		key := strings.ToLower(c.String())
		v.SetDefault("policy.daily_rates."+key, defaults.DailyRates[c].String())
		v.SetDefault("policy.monthly_rates."+key, defaults.MonthlyRates[c].String())
	}
	v.SetDefault("policy.regular_time_limit", defaults.TimeLimits[parking.RegularCustomer])
	v.SetDefault("policy.vip_fallback_time_limit", defaults.TimeLimits[parking.VIPCustomer])
	v.SetDefault("policy.re_entry_fee", defaults.ReEntryFee.String())
	v.SetDefault("policy.re_entry_window", defaults.ReEntryWindow)
	v.SetDefault("policy.penalty_per_hour", defaults.PenaltyPerHour.String())
	v.SetDefault("policy.warning_threshold", defaults.WarningThreshold)
	v.SetDefault("policy.vip_pass_duration", defaults.VIPPassDuration)
	v.SetDefault("policy.currency_symbol", defaults.CurrencySymbol)
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if _, err := c.ParkingLayout(); err != nil {
		return err
	}
	policy, err := c.ParkingPolicy()
	if err != nil {
		return err
	}
	return errors.Wrap(policy.Validate(), "policy")
}

func (c *Config) ParkingLayout() (parking.Layout, error) {
	l := c.Layout
	if l.Levels < 1 {
		return parking.Layout{}, errors.Newf("layout.levels must be at least 1, got %d", l.Levels)
	}
	if l.RegularSlots < 0 || l.EVSlots < 0 || l.VIPSlots < 0 {
		return parking.Layout{}, errors.New("layout slot counts must be non-negative")
	}
	return parking.Layout{
		Levels: l.Levels,
		SlotsPerSection: map[parking.Section]int{
			parking.RegularSection: l.RegularSlots,
			parking.EVSection:      l.EVSlots,
			parking.VIPSection:     l.VIPSlots,
		},
	}, nil
}

func (c *Config) ParkingPolicy() (parking.Policy, error) {
	p := c.Policy
	policy := parking.Policy{
		DailyRates:   make(map[parking.VehicleClass]decimal.Decimal),
		MonthlyRates: make(map[parking.VehicleClass]decimal.Decimal),
		TimeLimits: map[parking.CustomerClass]time.Duration{
			parking.RegularCustomer: p.RegularLimit,
			parking.VIPCustomer:     p.VIPFallbackLimit,
		},
		ReEntryWindow:    p.ReEntryWindow,
		WarningThreshold: p.WarningThreshold,
		VIPPassDuration:  p.VIPPassDuration,
		CurrencySymbol:   p.CurrencySymbol,
	}

	if err := parseRates(p.DailyRates, policy.DailyRates); err != nil {
		return parking.Policy{}, errors.Wrap(err, "policy.daily_rates")
	}
	if err := parseRates(p.MonthlyRates, policy.MonthlyRates); err != nil {
		return parking.Policy{}, errors.Wrap(err, "policy.monthly_rates")
	}

	var err error
	if policy.ReEntryFee, err = decimal.NewFromString(p.ReEntryFee); err != nil {
		return parking.Policy{}, errors.Wrap(err, "policy.re_entry_fee")
	}
	if policy.PenaltyPerHour, err = decimal.NewFromString(p.PenaltyPerHour); err != nil {
		return parking.Policy{}, errors.Wrap(err, "policy.penalty_per_hour")
	}
	if p.RegularLimit <= 0 || p.VIPFallbackLimit <= 0 {
		return parking.Policy{}, errors.New("policy time limits must be positive")
	}
	return policy, nil
}

func parseRates(raw map[string]string, into map[parking.VehicleClass]decimal.Decimal) error {
	for name, amount := range raw {
		class, err := parking.ParseVehicleClass(name)
		if err != nil {
			return err
		}
		rate, err := decimal.NewFromString(amount)
		if err != nil {
			return errors.Wrapf(err, "rate for %s", name)
		}
		if rate.IsNegative() {
			return errors.Newf("rate for %s must be non-negative", name)
		}
		into[class] = rate
	}
	return nil
}
