package config

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AdDocument is the externally supplied ad unit configuration. One list per
// format; a document whose Status is false disables every unit.
type AdDocument struct {
	Status                bool          `mapstructure:"status" json:"status"`
	Splashs               []AdUnitEntry `mapstructure:"splashs" json:"splashs,omitempty" validate:"dive"`
	AppOpens              []AdUnitEntry `mapstructure:"appOpens" json:"appOpens,omitempty" validate:"dive"`
	Rewardeds             []AdUnitEntry `mapstructure:"rewardeds" json:"rewardeds,omitempty" validate:"dive"`
	RewardedInterstitials []AdUnitEntry `mapstructure:"rewardedInterstitials" json:"rewardedInterstitials,omitempty" validate:"dive"`
	Natives               []AdUnitEntry `mapstructure:"natives" json:"natives,omitempty" validate:"dive"`
}

// AdUnitEntry is one unit in an AdDocument. Durations are in seconds.
type AdUnitEntry struct {
	Status       bool    `mapstructure:"status" json:"status"`
	ID           string  `mapstructure:"id" json:"id" validate:"required_if=Status true"`
	Name         string  `mapstructure:"name" json:"name" validate:"required"`
	Placement    string  `mapstructure:"placement" json:"placement,omitempty"`
	Timeout      float64 `mapstructure:"timeout" json:"timeout,omitempty" validate:"gte=0"`
	TimeInterval float64 `mapstructure:"timeInterval" json:"timeInterval,omitempty" validate:"gte=0"`
	IsFullScreen bool    `mapstructure:"isFullScreen" json:"isFullScreen,omitempty"`
}

// AdSection is the unit list of one format
type AdSection struct {
	Format string
	Units  []AdUnitEntry
}

// Sections returns the unit lists tagged with their format names
func (d *AdDocument) Sections() []AdSection {
	return []AdSection{
		{Format: "splash", Units: d.Splashs},
		{Format: "app_open", Units: d.AppOpens},
		{Format: "rewarded", Units: d.Rewardeds},
		{Format: "rewarded_interstitial", Units: d.RewardedInterstitials},
		{Format: "native", Units: d.Natives},
	}
}

var documentValidator = validator.New()

// LoadAdDocument reads a YAML or JSON ad document, chosen by file extension
func LoadAdDocument(path string) (*AdDocument, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read ad document: %w", err)
	}
	return decodeAdDocument(v)
}

// ParseAdDocument reads an ad document of the given type ("yaml" or "json")
func ParseAdDocument(r io.Reader, configType string) (*AdDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read ad document: %w", err)
	}

	v := viper.New()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse ad document: %w", err)
	}
	return decodeAdDocument(v)
}

func decodeAdDocument(v *viper.Viper) (*AdDocument, error) {
	var doc AdDocument
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode ad document: %w", err)
	}
	if err := documentValidator.Struct(&doc); err != nil {
		return nil, fmt.Errorf("invalid ad document: %w", err)
	}
	return &doc, nil
}
