package mapping

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/systmms/landdsync/internal/config"
	"github.com/systmms/landdsync/internal/logging"
)

// Stats counts what happened to the records of one batch.
type Stats struct {
	Mapped   int
	Skipped  int
	Excluded int
}

// Mapper applies the configured mapping policy to whole batches.
type Mapper struct {
	SourceSystemID  string
	SubmittedBy     string
	ExcludedDomains []string
	Policy          string
	Logger          logging.Printer
	Now             func() time.Time
}

// NewMapper builds a Mapper from the loaded configuration.
func NewMapper(def *config.Definition, logger logging.Printer) *Mapper {
	return &Mapper{
		SourceSystemID:  def.LandD.SourceSystemID,
		SubmittedBy:     def.LandD.SubmittedBy,
		ExcludedDomains: def.Consumption.ExcludedDomains,
		Policy:          def.General.MappingPolicy,
		Logger:          logger,
		Now:             time.Now,
	}
}

// Catalog maps every record. Under the strict policy the first bad record
// fails the batch; under lenient it is logged and skipped.
func (m *Mapper) Catalog(records []gjson.Result) ([]CatalogRecord, Stats, error) {
	out := make([]CatalogRecord, 0, len(records))
	var stats Stats
	for i, raw := range records {
		rec, err := MapCatalogRecord(m.SourceSystemID, i, NewSourceRecord(raw))
		if err != nil {
			if m.strict() {
				return nil, stats, err
			}
			m.skip(err)
			stats.Skipped++
			continue
		}
		out = append(out, rec)
		stats.Mapped++
	}
	return out, stats, nil
}

// Consumption maps every record whose user is not internal.
func (m *Mapper) Consumption(records []gjson.Result) ([]ConsumptionRecord, Stats, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	out := make([]ConsumptionRecord, 0, len(records))
	var stats Stats
	for i, raw := range records {
		rec := NewSourceRecord(raw)
		if username, _ := rec.StringForPath("username"); IsInternalUser(username, m.ExcludedDomains) {
			stats.Excluded++
			continue
		}

		mapped, err := MapConsumptionRecord(m.SourceSystemID, m.SubmittedBy, now(), i, rec)
		if err != nil {
			if m.strict() {
				return nil, stats, err
			}
			m.skip(err)
			stats.Skipped++
			continue
		}
		out = append(out, mapped)
		stats.Mapped++
	}
	return out, stats, nil
}

func (m *Mapper) strict() bool {
	return m.Policy != config.MappingLenient
}

func (m *Mapper) skip(err error) {
	if m.Logger != nil {
		m.Logger.Warn("Skipping %v", err)
	}
}
