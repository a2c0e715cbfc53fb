package types

import "github.com/m-mizutani/goerr/v2"

// Quality represents how a risk or cascade analysis was reached
type Quality string

const (
	QualityConsensus Quality = "CONSENSUS"
	QualityAverage   Quality = "AVERAGE"
	QualityMissing   Quality = "MISSING"
)

// AllQualities returns all valid qualities
func AllQualities() []Quality {
	return []Quality{
		QualityConsensus,
		QualityAverage,
		QualityMissing,
	}
}

// IsValid checks if the quality is valid
func (q Quality) IsValid() bool {
	switch q {
	case QualityConsensus,
		QualityAverage,
		QualityMissing:
		return true
	default:
		return false
	}
}

// String returns the string representation of the quality
func (q Quality) String() string {
	return string(q)
}

// ParseQuality parses a string into a Quality
func ParseQuality(s string) (Quality, error) {
	q := Quality(s)
	if !q.IsValid() {
		return "", goerr.New("invalid quality", goerr.V("quality", s))
	}
	return q, nil
}
