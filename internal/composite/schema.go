package composite

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrSchemaDrift marks a composite whose band names differ from the
// established schema of its collection.
var ErrSchemaDrift = errors.New("schema drift")

type SchemaDriftError struct {
	Collection string
	Region     string
	Year       int
	Missing    []string
	Extra      []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("%s: collection %s region %s year %d: missing [%s] extra [%s]",
		ErrSchemaDrift, e.Collection, e.Region, e.Year,
		strings.Join(e.Missing, ", "), strings.Join(e.Extra, ", "))
}

func (e *SchemaDriftError) Unwrap() error {
	return ErrSchemaDrift
}

// SchemaRegistry pins the first band set seen per collection and compares
// every later composite against it. Safe for concurrent regions.
type SchemaRegistry struct {
	mu      sync.Mutex
	schemas map[string][]string
}

func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: map[string][]string{}}
}

// Check establishes or verifies the schema for collection.
func (r *SchemaRegistry) Check(collection, region string, year int, names []string) error {
	got := append([]string(nil), names...)
	sort.Strings(got)

	r.mu.Lock()
	defer r.mu.Unlock()
	want, ok := r.schemas[collection]
	if !ok {
		r.schemas[collection] = got
		return nil
	}
	missing, extra := diff(want, got)
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	return &SchemaDriftError{Collection: collection, Region: region, Year: year, Missing: missing, Extra: extra}
}

// Schema returns the pinned band set of collection, if any.
func (r *SchemaRegistry) Schema(collection string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schemas[collection]
	return append([]string(nil), s...), ok
}

func diff(want, got []string) (missing, extra []string) {
	in := func(set []string, s string) bool {
		i := sort.SearchStrings(set, s)
		return i < len(set) && set[i] == s
	}
	for _, w := range want {
		if !in(got, w) {
			missing = append(missing, w)
		}
	}
	for _, g := range got {
		if !in(want, g) {
			extra = append(extra, g)
		}
	}
	return missing, extra
}
