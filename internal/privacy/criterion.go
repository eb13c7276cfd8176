package privacy

// EquivalenceClass summarizes the records sharing one combination of
// generalized quasi-identifier values.
type EquivalenceClass struct {
	Size            int
	SensitiveCounts map[int]int
}

// NewEquivalenceClass creates an empty class.
func NewEquivalenceClass() *EquivalenceClass {
	return &EquivalenceClass{SensitiveCounts: make(map[int]int)}
}

// Add records one row with the given sensitive value code. Pass a negative
// code when there is no sensitive attribute.
func (c *EquivalenceClass) Add(sensitive int) {
	c.Size++
	if sensitive >= 0 {
		c.SensitiveCounts[sensitive]++
	}
}

// Merge folds other into c.
func (c *EquivalenceClass) Merge(other *EquivalenceClass) {
	c.Size += other.Size
	for value, count := range other.SensitiveCounts {
		c.SensitiveCounts[value] += count
	}
}

// Clone returns a deep copy.
func (c *EquivalenceClass) Clone() *EquivalenceClass {
	out := &EquivalenceClass{Size: c.Size, SensitiveCounts: make(map[int]int, len(c.SensitiveCounts))}
	for value, count := range c.SensitiveCounts {
		out.SensitiveCounts[value] = count
	}
	return out
}

// Criterion is a privacy model evaluated per equivalence class.
type Criterion interface {
	// Name identifies the criterion in logs and output
	Name() string

	// Fulfilled reports whether a class satisfies the criterion
	Fulfilled(class *EquivalenceClass) bool

	// MinimalClassSize is the smallest class size the criterion can accept
	MinimalClassSize() int

	// IsMonotonicWithSuppression reports whether the criterion stays
	// upward-closed under generalization when records may be suppressed.
	// Without suppression every criterion here is monotonic.
	IsMonotonicWithSuppression() bool

	// RequiresSensitive reports whether a sensitive attribute is needed
	RequiresSensitive() bool
}
