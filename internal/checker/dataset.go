package checker

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/internal/data"
	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/pkg/constants"
	"github.com/inferloop/anonsearch/pkg/errors"
)

// DatasetConfig configures a DatasetChecker.
type DatasetConfig struct {
	Criteria              []privacy.Criterion
	Metric                string
	SuppressionLimit      float64
	HistorySize           int
	PracticalMonotonicity bool
}

// DatasetChecker checks transformations against an encoded dataset.
type DatasetChecker struct {
	logger   *logrus.Logger
	dataset  *data.EncodedDataset
	criteria []privacy.Criterion
	metric   GroupMetric
	history  *SnapshotHistory
	config   Configuration

	minimalClassSize int
	maxSuppressed    int
	checks           int
}

// NewDatasetChecker validates the configuration against the dataset and
// derives the monotonicity of privacy and utility.
func NewDatasetChecker(dataset *data.EncodedDataset, cfg DatasetConfig, logger *logrus.Logger) (*DatasetChecker, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if len(cfg.Criteria) == 0 {
		return nil, errors.NewValidationError(errors.ErrInvalidConfiguration, errors.CodeMissingField,
			"at least one privacy criterion is required")
	}
	if cfg.SuppressionLimit < 0 || cfg.SuppressionLimit > 1 {
		return nil, errors.NewValidationError(errors.ErrInvalidConfiguration, errors.CodeOutOfRange,
			fmt.Sprintf("suppression limit must be within [0, 1], got %g", cfg.SuppressionLimit))
	}
	if cfg.Metric == "" {
		cfg.Metric = constants.MetricPrecision
	}
	if cfg.HistorySize == 0 {
		cfg.HistorySize = constants.DefaultHistorySize
	}

	suppression := cfg.SuppressionLimit > 0
	minimal := 1
	monotonic := true
	for _, c := range cfg.Criteria {
		if c.RequiresSensitive() && dataset.Sensitive == nil {
			return nil, errors.NewValidationError(errors.ErrInvalidConfiguration, errors.CodeMissingField,
				fmt.Sprintf("criterion %s requires a sensitive attribute", c.Name()))
		}
		minimal = max(minimal, c.MinimalClassSize())
		if suppression && !c.IsMonotonicWithSuppression() {
			monotonic = false
		}
	}

	metric, err := NewMetric(cfg.Metric, dataset, suppression)
	if err != nil {
		return nil, err
	}
	history, err := NewSnapshotHistory(max(cfg.HistorySize, 0), logger)
	if err != nil {
		return nil, errors.NewConfigurationError(err, "failed to create snapshot history")
	}

	config := Configuration{
		CriterionMonotonic:    monotonic,
		PracticalMonotonicity: cfg.PracticalMonotonicity,
		UtilityMonotonicity:   MonotonicityNone,
	}
	switch {
	case monotonic || cfg.PracticalMonotonicity:
		config.PrivacyMonotonicity = MonotonicityFull
	case minimal > 1:
		config.PrivacyMonotonicity = MonotonicityPartial
	default:
		config.PrivacyMonotonicity = MonotonicityNone
	}
	if metric.IsMonotonic() {
		config.UtilityMonotonicity = MonotonicityFull
	}

	c := &DatasetChecker{
		logger:           logger,
		dataset:          dataset,
		criteria:         cfg.Criteria,
		metric:           metric,
		history:          history,
		config:           config,
		minimalClassSize: minimal,
		maxSuppressed:    int(math.Floor(cfg.SuppressionLimit * float64(dataset.Records()))),
	}

	logger.WithFields(logrus.Fields{
		"records":              dataset.Records(),
		"criteria":             len(cfg.Criteria),
		"metric":               metric.Name(),
		"privacy_monotonicity": config.PrivacyMonotonicity.String(),
		"utility_monotonicity": config.UtilityMonotonicity.String(),
		"max_suppressed":       c.maxSuppressed,
	}).Info("Created dataset checker")

	return c, nil
}

// Metric implements Checker.
func (c *DatasetChecker) Metric() Metric {
	return c.metric
}

// Configuration implements Checker.
func (c *DatasetChecker) Configuration() Configuration {
	return c.config
}

// History implements Checker.
func (c *DatasetChecker) History() History {
	return c.history
}

// SnapshotHistory returns the concrete history for inspection.
func (c *DatasetChecker) SnapshotHistory() *SnapshotHistory {
	return c.history
}

// Checks returns how many checks were performed.
func (c *DatasetChecker) Checks() int {
	return c.checks
}

// Check implements Checker.
func (c *DatasetChecker) Check(t *lattice.Transformation) (*TransformationResult, error) {
	if t.Dimensions() != c.dataset.Dimensions() {
		return nil, errors.NewSearchError(errors.ErrInvalidGeneralization, errors.CodeCheckFailed,
			"transformation does not match the dataset").
			WithContext("generalization", t.Generalization())
	}
	for dim, h := range c.dataset.Hierarchies {
		if t.GeneralizationAt(dim) > h.MaxLevel() {
			return nil, errors.NewSearchError(errors.ErrInvalidGeneralization, errors.CodeCheckFailed,
				fmt.Sprintf("level %d exceeds hierarchy height of %s", t.GeneralizationAt(dim), h.Attribute)).
				WithContext("generalization", t.Generalization())
		}
	}
	c.checks++

	snap := c.group(t)

	stats := &GroupStats{Records: c.dataset.Records()}
	kSuppressed, suppressed := 0, 0
	for _, entry := range snap.classes {
		class := entry.class
		if class.Size < c.minimalClassSize {
			kSuppressed += class.Size
		}
		if !c.fulfilled(class) {
			suppressed += class.Size
			continue
		}
		stats.Classes = append(stats.Classes, class)
	}
	stats.Suppressed = suppressed

	anonymous := suppressed <= c.maxSuppressed
	result := &TransformationResult{
		PrivacyModelFulfilled:     anonymous,
		MinimalClassSizeFulfilled: kSuppressed <= c.maxSuppressed,
		InformationLoss:           c.metric.GroupLoss(t, stats),
		LowerBound:                c.metric.LowerBound(t),
	}

	stored := c.history.store(t, snap, anonymous)

	c.logger.WithFields(logrus.Fields{
		"transformation": t.String(),
		"classes":        len(snap.classes),
		"suppressed":     suppressed,
		"anonymous":      anonymous,
		"stored":         stored,
	}).Debug("Checked transformation")

	return result, nil
}

func (c *DatasetChecker) fulfilled(class *privacy.EquivalenceClass) bool {
	for _, criterion := range c.criteria {
		if !criterion.Fulfilled(class) {
			return false
		}
	}
	return true
}

// group builds the equivalence classes of t, rolling up the closest cached
// predecessor snapshot when one exists.
func (c *DatasetChecker) group(t *lattice.Transformation) *snapshot {
	snap := &snapshot{id: t.ID(), generalization: t.Generalization()}
	index := make(map[string]*classEntry)
	buf := make([]byte, 0, binary.MaxVarintLen64*t.Dimensions())

	add := func(row int, class *privacy.EquivalenceClass) {
		buf = c.key(buf[:0], t, row)
		entry, ok := index[string(buf)]
		if !ok {
			entry = &classEntry{representative: row, class: privacy.NewEquivalenceClass()}
			index[string(buf)] = entry
			snap.classes = append(snap.classes, entry)
		}
		if class != nil {
			entry.class.Merge(class)
		} else {
			entry.class.Add(c.sensitive(row))
		}
	}

	if base := c.history.closest(t); base != nil {
		for _, entry := range base.classes {
			add(entry.representative, entry.class)
		}
		return snap
	}

	for row := 0; row < c.dataset.Records(); row++ {
		add(row, nil)
	}
	return snap
}

func (c *DatasetChecker) key(buf []byte, t *lattice.Transformation, row int) []byte {
	for dim, h := range c.dataset.Hierarchies {
		code := h.Generalize(c.dataset.Columns[dim][row], t.GeneralizationAt(dim))
		buf = binary.AppendUvarint(buf, uint64(code))
	}
	return buf
}

func (c *DatasetChecker) sensitive(row int) int {
	if c.dataset.Sensitive == nil {
		return -1
	}
	return c.dataset.Sensitive[row]
}
