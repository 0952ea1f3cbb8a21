package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// PricingEntry is one "from" price line shown on the landing page, in roubles.
type PricingEntry struct {
	Component string `mapstructure:"component" json:"component"`
	LaborFrom int64  `mapstructure:"labor_from" json:"labor_from"`
	PartFrom  int64  `mapstructure:"part_from" json:"part_from"`
	TotalFrom int64  `mapstructure:"total_from" json:"total_from"`
}

// PricingCatalog is loaded once at startup and never mutated afterwards.
type PricingCatalog struct {
	entries []PricingEntry
}

// NewPricingCatalog copies entries into an immutable catalog.
func NewPricingCatalog(entries []PricingEntry) *PricingCatalog {
	return &PricingCatalog{entries: append([]PricingEntry(nil), entries...)}
}

// Entries returns a copy of the catalog in display order.
func (c *PricingCatalog) Entries() []PricingEntry {
	if c == nil {
		return nil
	}
	return append([]PricingEntry(nil), c.entries...)
}

// Final cost depends on the appliance model and diagnostics.
func DefaultPricing() []PricingEntry {
	return []PricingEntry{
		{Component: "Диагностика", LaborFrom: 0, PartFrom: 0, TotalFrom: 0},
		{Component: "Компрессор", LaborFrom: 4500, PartFrom: 12000, TotalFrom: 16500},
		{Component: "Плата управления", LaborFrom: 2500, PartFrom: 5000, TotalFrom: 7500},
		{Component: "Пускозащитное реле", LaborFrom: 1200, PartFrom: 900, TotalFrom: 2100},
		{Component: "Термостат", LaborFrom: 1500, PartFrom: 1200, TotalFrom: 2700},
		{Component: "Датчик температуры", LaborFrom: 1200, PartFrom: 700, TotalFrom: 1900},
		{Component: "Вентилятор испарителя", LaborFrom: 1800, PartFrom: 1800, TotalFrom: 3600},
		{Component: "ТЭН оттайки", LaborFrom: 2200, PartFrom: 1600, TotalFrom: 3800},
		{Component: "Таймер/модуль оттайки", LaborFrom: 1800, PartFrom: 1400, TotalFrom: 3200},
		{Component: "Клапан (No Frost/переключающий)", LaborFrom: 1800, PartFrom: 1800, TotalFrom: 3600},
		{Component: "Фильтр-осушитель", LaborFrom: 2500, PartFrom: 600, TotalFrom: 3100},
		{Component: "Капиллярная трубка (устранение засора)", LaborFrom: 3000, PartFrom: 0, TotalFrom: 3000},
		{Component: "Заправка хладагентом", LaborFrom: 2500, PartFrom: 1200, TotalFrom: 3700},
		{Component: "Испаритель (ремонт/замена)", LaborFrom: 4000, PartFrom: 2500, TotalFrom: 6500},
		{Component: "Конденсатор", LaborFrom: 2200, PartFrom: 1500, TotalFrom: 3700},
		{Component: "Уплотнитель двери", LaborFrom: 2000, PartFrom: 1800, TotalFrom: 3800},
		{Component: "Петля/механизм двери", LaborFrom: 1500, PartFrom: 1000, TotalFrom: 2500},
		{Component: "Подсветка (лампа/LED модуль)", LaborFrom: 700, PartFrom: 300, TotalFrom: 1000},
	}
}

// LoadPricingCatalog reads pricing.yml (or PRICING_FILE) once. A missing file
// falls back to DefaultPricing.
func LoadPricingCatalog(cfg Config) (*PricingCatalog, error) {
	v := viper.New()

	if cfg.PricingFile != "" {
		v.SetConfigFile(cfg.PricingFile)
	} else {
		v.SetConfigName("pricing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/repairdesk")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return NewPricingCatalog(DefaultPricing()), nil
		}
		return nil, fmt.Errorf("read pricing config: %w", err)
	}

	var entries []PricingEntry
	if err := v.UnmarshalKey("pricing", &entries); err != nil {
		return nil, fmt.Errorf("decode pricing config: %w", err)
	}
	if err := validatePricing(entries); err != nil {
		return nil, err
	}
	return NewPricingCatalog(entries), nil
}

func validatePricing(entries []PricingEntry) error {
	if len(entries) == 0 {
		return errors.New("pricing cannot be empty")
	}
	for i, entry := range entries {
		if strings.TrimSpace(entry.Component) == "" {
			return fmt.Errorf("pricing[%d]: component is required", i)
		}
		if entry.LaborFrom < 0 || entry.PartFrom < 0 || entry.TotalFrom < 0 {
			return fmt.Errorf("pricing[%d]: amounts must be non-negative", i)
		}
	}
	return nil
}
