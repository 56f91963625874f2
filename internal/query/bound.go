package query

// Bound is one endpoint of a range predicate: unbounded, inclusive, or
// exclusive. Modeled on Rust's std::ops::Bound, which
// original_source/src/coinquery.rs uses for create_height_range,
// spend_height_range, and value_range.
type Bound struct {
	value     uint64
	has       bool
	exclusive bool
}

// Unbounded returns a Bound with no constraint.
func Unbounded() Bound { return Bound{} }

// Included returns an inclusive bound at v.
func Included(v uint64) Bound { return Bound{value: v, has: true} }

// Excluded returns an exclusive bound at v.
func Excluded(v uint64) Bound { return Bound{value: v, has: true, exclusive: true} }
