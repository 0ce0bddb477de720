// Package config centralizes the configuration bag spec.md §6 calls
// for: "a single configuration bag with database_url, secret_key,
// allowed_origins, token lifetimes, unit price constant, tier
// thresholds, rank thresholds, payout minimums, scheduler day/hour."
package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// TierRate is one band of the Network Walker's tiered team-commission rate.
type TierRate struct {
	MaxUnits decimal.Decimal // inclusive upper bound; zero means unbounded
	Rate     decimal.Decimal
}

// RankStep is one rung of the Rank Engine's promotion ladder.
type RankStep struct {
	Rank          string
	ThresholdUnit int64
	BonusAmount   decimal.Decimal
	InsuranceAmt  decimal.Decimal
}

// Config is the single bag of settings passed through the service,
// never read from the environment again once constructed.
type Config struct {
	DatabaseURL          string
	SecretKey            string
	AllowedOrigins       []string
	TokenLifetime        time.Duration
	Address              string

	UnitPrice             decimal.Decimal // currency units per sales unit
	DirectReferralPercent decimal.Decimal // 0.20
	TierRates             []TierRate
	RankLadder            []RankStep

	MinWalletWithdrawal decimal.Decimal // 1000, enforced today
	MinWeeklyPayout     decimal.Decimal // 5000, reserved for a future queued-payout path (spec §9 open question)

	SchedulerWeekday time.Weekday // time.Monday
	SchedulerHour    int          // 16
	SchedulerMinute  int          // 0
	MaxUplineDepth   int          // 10000, safety bound not a business rule
}

// New builds the Config from defaults, environment variables and any
// bound viper flags, mirroring the teacher's cmd/root.go env-binding
// style but collapsed into one constructor for a single-service repo.
func New() *Config {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("address", ":8080")
	viper.SetDefault("database_url", "postgres://localhost/compensation?sslmode=disable")
	viper.SetDefault("allowed_origins", "*")
	viper.SetDefault("token_lifetime", "24h")

	tokenLifetime, err := time.ParseDuration(viper.GetString("token_lifetime"))
	if err != nil {
		tokenLifetime = 24 * time.Hour
	}

	origins := strings.Split(viper.GetString("allowed_origins"), ",")

	return &Config{
		DatabaseURL:    viper.GetString("database_url"),
		SecretKey:      viper.GetString("secret_key"),
		AllowedOrigins: origins,
		TokenLifetime:  tokenLifetime,
		Address:        viper.GetString("address"),

		UnitPrice:             decimal.NewFromInt(5000),
		DirectReferralPercent: decimal.NewFromFloat(0.20),
		TierRates: []TierRate{
			{MaxUnits: decimal.NewFromInt(1000), Rate: decimal.NewFromFloat(0.02)},
			{MaxUnits: decimal.NewFromInt(10000), Rate: decimal.NewFromFloat(0.01)},
			{MaxUnits: decimal.Zero, Rate: decimal.NewFromFloat(0.001)}, // unbounded
		},
		RankLadder: []RankStep{
			{Rank: "achiever", ThresholdUnit: 100, BonusAmount: decimal.NewFromInt(10_000), InsuranceAmt: decimal.Zero},
			{Rank: "leader", ThresholdUnit: 1_000, BonusAmount: decimal.NewFromInt(100_000), InsuranceAmt: decimal.NewFromInt(100_000)},
			{Rank: "pro_leader", ThresholdUnit: 10_000, BonusAmount: decimal.NewFromInt(1_000_000), InsuranceAmt: decimal.NewFromInt(1_000_000)},
			{Rank: "champion", ThresholdUnit: 100_000, BonusAmount: decimal.NewFromInt(10_000_000), InsuranceAmt: decimal.NewFromInt(10_000_000)},
			{Rank: "legend", ThresholdUnit: 1_000_000, BonusAmount: decimal.NewFromInt(100_000_000), InsuranceAmt: decimal.NewFromInt(100_000_000)},
		},

		MinWalletWithdrawal: decimal.NewFromInt(1000),
		MinWeeklyPayout:     decimal.NewFromInt(5000),

		SchedulerWeekday: time.Monday,
		SchedulerHour:    16,
		SchedulerMinute:  0,
		MaxUplineDepth:   10_000,
	}
}
