// Package domain defines the value types shared by the replacement manager,
// the persistence backends and the adapters that feed and read them.
package domain

import "time"

// Replacement records that Old was superseded by New on Date. It is a
// transient edge: the manager folds it into the union-find and never stores it.
type Replacement struct {
	Old  string    `json:"old" yaml:"old"`
	New  string    `json:"new" yaml:"new"`
	Date time.Time `json:"date" yaml:"date"`
}

// Resolution answers "what is the latest replacement for Product?".
// Date is nil when no replacement date is known. Found is false when Product
// has never been registered, in which case Latest echoes Product.
type Resolution struct {
	Product string     `json:"product"`
	Latest  string     `json:"latest"`
	Date    *time.Time `json:"date,omitempty"`
	Found   bool       `json:"found"`
}

// Mapping is one row of the product to latest-version export.
type Mapping struct {
	Product string     `json:"product" yaml:"product"`
	Latest  string     `json:"latest" yaml:"latest"`
	Date    *time.Time `json:"date,omitempty" yaml:"date,omitempty"`
}

// ReplaceOutcome reports what a single AddReplacement call did.
// Latest and Date describe the representative of the old product's set after
// the call, whether or not the union was applied.
type ReplaceOutcome struct {
	Replacement Replacement `json:"replacement"`
	Applied     bool        `json:"applied"`
	Latest      string      `json:"latest"`
	Date        *time.Time  `json:"date,omitempty"`
	Created     []string    `json:"created,omitempty"`
}

// BulkResult summarises a bulk load.
type BulkResult struct {
	Processed int `json:"processed"`
	Applied   int `json:"applied"`
	Refused   int `json:"refused"`
	Created   int `json:"created"`
}

// ProgressFunc receives incremental progress for bulk operations. It is
// called after each item with the number of items done and the total.
type ProgressFunc func(done, total int)

// DatePtr returns nil for the zero time, which marks "no date available".
func DatePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
