package checker

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/internal/lattice"
	"github.com/inferloop/anonsearch/internal/privacy"
)

// classEntry is one equivalence class of a snapshot. Every record of the
// class shares its generalized values, so one representative row is enough
// to regroup the class at any higher generalization.
type classEntry struct {
	representative int
	class          *privacy.EquivalenceClass
}

// snapshot stores the equivalence classes of a checked transformation.
type snapshot struct {
	id             int64
	generalization []int
	classes        []*classEntry
}

// SnapshotHistory keeps recent snapshots in a bounded LRU cache.
type SnapshotHistory struct {
	logger   *logrus.Logger
	cache    *lru.Cache
	strategy StorageStrategy

	hits   int
	misses int
}

// NewSnapshotHistory creates a history holding up to size snapshots. A size
// of zero disables caching.
func NewSnapshotHistory(size int, logger *logrus.Logger) (*SnapshotHistory, error) {
	if logger == nil {
		logger = logrus.New()
	}
	h := &SnapshotHistory{logger: logger, strategy: StorageAll}
	if size > 0 {
		cache, err := lru.New(size)
		if err != nil {
			return nil, err
		}
		h.cache = cache
	}
	return h, nil
}

// SetStorageStrategy implements History.
func (h *SnapshotHistory) SetStorageStrategy(strategy StorageStrategy) {
	if strategy != h.strategy {
		h.logger.WithField("strategy", strategy.String()).Debug("Changed history storage strategy")
	}
	h.strategy = strategy
}

// StorageStrategy implements History.
func (h *SnapshotHistory) StorageStrategy() StorageStrategy {
	return h.strategy
}

// Size implements History.
func (h *SnapshotHistory) Size() int {
	if h.cache == nil {
		return 0
	}
	return h.cache.Len()
}

// Hits returns how many lookups found a usable snapshot.
func (h *SnapshotHistory) Hits() int {
	return h.hits
}

// Misses returns how many lookups had to group from scratch.
func (h *SnapshotHistory) Misses() int {
	return h.misses
}

// Reset drops every snapshot.
func (h *SnapshotHistory) Reset() {
	if h.cache != nil {
		h.cache.Purge()
	}
}

// closest returns the cached snapshot of a predecessor of t with the fewest
// classes, or nil.
func (h *SnapshotHistory) closest(t *lattice.Transformation) *snapshot {
	if h.cache == nil {
		h.misses++
		return nil
	}

	var best *snapshot
	for _, key := range h.cache.Keys() {
		value, ok := h.cache.Peek(key)
		if !ok {
			continue
		}
		s := value.(*snapshot)
		if !generalizes(t, s.generalization) {
			continue
		}
		if best == nil || len(s.classes) < len(best.classes) {
			best = s
		}
	}

	if best == nil {
		h.misses++
		return nil
	}
	h.hits++
	h.cache.Get(best.id)
	return best
}

// store keeps s when the storage strategy allows it.
func (h *SnapshotHistory) store(t *lattice.Transformation, s *snapshot, anonymous bool) bool {
	if h.cache == nil {
		return false
	}

	space := t.Space()
	keep := t.HasProperty(space.PropertyForceSnapshot())
	if !keep {
		switch h.strategy {
		case StorageAll:
			keep = true
		case StorageNonAnonymous:
			keep = !anonymous
		case StorageChecked:
			keep = !t.HasProperty(space.PropertySuccessorsPruned())
		}
	}
	if !keep {
		return false
	}

	h.cache.Add(s.id, s)
	return true
}

// generalizes reports whether t is at or above generalization in every
// dimension.
func generalizes(t *lattice.Transformation, generalization []int) bool {
	for i, g := range generalization {
		if t.GeneralizationAt(i) < g {
			return false
		}
	}
	return true
}

// nullHistory only remembers its storage strategy.
type nullHistory struct {
	strategy StorageStrategy
}

func (h *nullHistory) SetStorageStrategy(strategy StorageStrategy) { h.strategy = strategy }
func (h *nullHistory) StorageStrategy() StorageStrategy             { return h.strategy }
func (h *nullHistory) Size() int                                    { return 0 }
