package badger

import "github.com/marmos91/fsbridge/pkg/registry"

// Key layout:
//
//	e:<entry-id>  -> JSON encoded registry.Resource
//	m:session     -> RFC 3339 timestamp of the session that created the database
const (
	prefixEntry = "e:"
	keySession  = "m:session"
)

func keyEntry(id registry.EntryID) []byte {
	return []byte(prefixEntry + string(id))
}

func keyEntryPrefix() []byte {
	return []byte(prefixEntry)
}
