package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/travelytics/medallion/pkg/errors"
)

// EngineConfig contains the tunable thresholds for the transformation and
// data quality engine. All business constants live here so that cleaning and
// segmentation stay a single declarative decision point.
type EngineConfig struct {
	Cleaning     CleaningConfig     `json:"cleaning" yaml:"cleaning" mapstructure:"cleaning"`
	Quality      QualityConfig      `json:"quality" yaml:"quality" mapstructure:"quality"`
	Segmentation SegmentationConfig `json:"segmentation" yaml:"segmentation" mapstructure:"segmentation"`
	Tiering      TieringConfig      `json:"tiering" yaml:"tiering" mapstructure:"tiering"`
}

// CleaningConfig contains silver-layer cleaning bounds
type CleaningConfig struct {
	MaxPriceUSD         float64 `json:"max_price_usd" yaml:"max_price_usd" mapstructure:"max_price_usd"`
	PricePrecision      int     `json:"price_precision" yaml:"price_precision" mapstructure:"price_precision"`
	CoordinatePrecision int     `json:"coordinate_precision" yaml:"coordinate_precision" mapstructure:"coordinate_precision"`
}

// QualityConfig contains data quality gate settings
type QualityConfig struct {
	FreshnessWindow  time.Duration `json:"freshness_window" yaml:"freshness_window" mapstructure:"freshness_window"`
	MinRowCountRatio float64       `json:"min_row_count_ratio" yaml:"min_row_count_ratio" mapstructure:"min_row_count_ratio"`
}

// SegmentationConfig contains user segmentation thresholds
type SegmentationConfig struct {
	HighFrequencyMin  int64   `json:"high_frequency_min" yaml:"high_frequency_min" mapstructure:"high_frequency_min"`
	MediumFrequencyMin int64  `json:"medium_frequency_min" yaml:"medium_frequency_min" mapstructure:"medium_frequency_min"`
	PremiumPriceMin   float64 `json:"premium_price_min" yaml:"premium_price_min" mapstructure:"premium_price_min"`
	StandardPriceMin  float64 `json:"standard_price_min" yaml:"standard_price_min" mapstructure:"standard_price_min"`
}

// TieringConfig contains customer tier spend thresholds
type TieringConfig struct {
	PlatinumMinSpend float64 `json:"platinum_min_spend" yaml:"platinum_min_spend" mapstructure:"platinum_min_spend"`
	GoldMinSpend     float64 `json:"gold_min_spend" yaml:"gold_min_spend" mapstructure:"gold_min_spend"`
	SilverMinSpend   float64 `json:"silver_min_spend" yaml:"silver_min_spend" mapstructure:"silver_min_spend"`
}

// DefaultConfig returns the engine defaults matching the production pipeline
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Cleaning: CleaningConfig{
			MaxPriceUSD:         50000,
			PricePrecision:      2,
			CoordinatePrecision: 6,
		},
		Quality: QualityConfig{
			FreshnessWindow:  24 * time.Hour,
			MinRowCountRatio: 0.5,
		},
		Segmentation: SegmentationConfig{
			HighFrequencyMin:   10,
			MediumFrequencyMin: 3,
			PremiumPriceMin:    500,
			StandardPriceMin:   200,
		},
		Tiering: TieringConfig{
			PlatinumMinSpend: 5000,
			GoldMinSpend:     2000,
			SilverMinSpend:   500,
		},
	}
}

// Load reads configuration from the given file, falling back to defaults for
// any unset key. An empty path returns the defaults unchanged.
func Load(path string) (*EngineConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("cleaning.max_price_usd", cfg.Cleaning.MaxPriceUSD)
	v.SetDefault("cleaning.price_precision", cfg.Cleaning.PricePrecision)
	v.SetDefault("cleaning.coordinate_precision", cfg.Cleaning.CoordinatePrecision)
	v.SetDefault("quality.freshness_window", cfg.Quality.FreshnessWindow)
	v.SetDefault("quality.min_row_count_ratio", cfg.Quality.MinRowCountRatio)
	v.SetDefault("segmentation.high_frequency_min", cfg.Segmentation.HighFrequencyMin)
	v.SetDefault("segmentation.medium_frequency_min", cfg.Segmentation.MediumFrequencyMin)
	v.SetDefault("segmentation.premium_price_min", cfg.Segmentation.PremiumPriceMin)
	v.SetDefault("segmentation.standard_price_min", cfg.Segmentation.StandardPriceMin)
	v.SetDefault("tiering.platinum_min_spend", cfg.Tiering.PlatinumMinSpend)
	v.SetDefault("tiering.gold_min_spend", cfg.Tiering.GoldMinSpend)
	v.SetDefault("tiering.silver_min_spend", cfg.Tiering.SilverMinSpend)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration,
			errors.CodeConfigurationLoad, "failed to read config file")
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration,
			errors.CodeInvalidConfiguration, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants
func (c *EngineConfig) Validate() error {
	if c.Cleaning.MaxPriceUSD <= 0 {
		return errors.NewConfigurationError(errors.CodeInvalidConfiguration,
			"cleaning.max_price_usd must be positive")
	}
	if c.Quality.MinRowCountRatio < 0 || c.Quality.MinRowCountRatio > 1 {
		return errors.NewConfigurationError(errors.CodeInvalidConfiguration,
			"quality.min_row_count_ratio must be between 0 and 1")
	}
	if c.Segmentation.MediumFrequencyMin > c.Segmentation.HighFrequencyMin {
		return errors.NewConfigurationError(errors.CodeInvalidConfiguration,
			"segmentation frequency thresholds out of order")
	}
	return nil
}
