package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/pkg/config"
)

// UnitsFromDocument converts an ad document into unit configurations.
// A document whose status is false yields no units. Every invalid entry
// is reported in the returned error.
func UnitsFromDocument(doc *config.AdDocument) ([]ad.UnitConfig, error) {
	if doc == nil || !doc.Status {
		return nil, nil
	}

	var units []ad.UnitConfig
	var errs []error
	seen := make(map[ad.Key]bool)

	for _, section := range doc.Sections() {
		format, err := ad.ParseFormat(section.Format)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for i, entry := range section.Units {
			unit, err := UnitFromEntry(format, entry)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", format, i, err))
				continue
			}
			if seen[unit.Key()] {
				errs = append(errs, fmt.Errorf("%w: duplicate unit %s", ad.ErrInvalidConfiguration, unit.Key()))
				continue
			}
			seen[unit.Key()] = true
			units = append(units, unit)
		}
	}

	if len(errs) > 0 {
		return units, errors.Join(errs...)
	}
	return units, nil
}

// UnitFromEntry converts one document entry
func UnitFromEntry(format ad.Format, entry config.AdUnitEntry) (ad.UnitConfig, error) {
	return ad.NewUnitConfig(format, entry.ID, entry.Name, entry.Status, ad.UnitOptions{
		Placement:       entry.Placement,
		Timeout:         seconds(entry.Timeout),
		MinShowInterval: seconds(entry.TimeInterval),
		FullScreenMedia: entry.IsFullScreen,
	})
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
