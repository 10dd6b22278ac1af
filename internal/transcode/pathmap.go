package transcode

import (
	"fmt"
	"strings"

	"media-encoder/internal/config"
)

// MappingTable rewrites filesystem paths between the catalog's view of the
// filesystem and the encoder host's. The catalog may report media under a
// mount point this process does not have; the table substitutes the first
// matching source prefix with its destination prefix.
//
// The substitution is purely textual. First match wins, so more specific
// prefixes must be listed before broader ones in the configuration.
type MappingTable struct {
	mappings []config.PathMapping
}

// NewMappingTable builds a table from the ordered configuration entries.
func NewMappingTable(mappings []config.PathMapping) MappingTable {
	return MappingTable{mappings: mappings}
}

// Apply maps a path through the table. If no source prefix matches, the
// path is returned unchanged.
func (t MappingTable) Apply(path string) string {
	for _, m := range t.mappings {
		if m.Source == "" {
			continue
		}
		if strings.HasPrefix(path, m.Source) {
			return m.Dest + strings.TrimPrefix(path, m.Source)
		}
	}
	return path
}

// Validate rejects tables that are not stable under re-application: if any
// destination prefix itself matches a source prefix, a mapped path would be
// rewritten again on a second pass.
func (t MappingTable) Validate() error {
	for _, m := range t.mappings {
		if m.Source == "" {
			return fmt.Errorf("path mapping with empty source (dest %q)", m.Dest)
		}
		for _, other := range t.mappings {
			if strings.HasPrefix(m.Dest, other.Source) {
				return fmt.Errorf("path mapping %q -> %q is not idempotent: destination matches source prefix %q",
					m.Source, m.Dest, other.Source)
			}
		}
	}
	return nil
}

// Len returns the number of configured mappings.
func (t MappingTable) Len() int {
	return len(t.mappings)
}
