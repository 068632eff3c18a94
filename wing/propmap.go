package wing

import (
	"encoding/binary"
	"strconv"
	"sync"
)

// The property map translates slash-separated property names such as
// /main/1/mute to node ids and back. It is built once, on first use, from
// the compiled-in table in propmap_data.go; after initialization it is
// immutable and safe for concurrent use without synchronization.
//
// The table is a sequence of records: id (int32, big-endian), name length
// (uint16, big-endian), name bytes. Truncated trailing records are ignored.

var propmap struct {
	once      sync.Once
	nameToID  map[string]NodeID
	idToNames map[NodeID][]string
}

func initPropmap() {
	propmap.nameToID, propmap.idToNames = parsePropmap([]byte(propmapData))
}

func parsePropmap(d []byte) (map[string]NodeID, map[NodeID][]string) {
	nameToID := make(map[string]NodeID)
	idToNames := make(map[NodeID][]string)

	for len(d) >= 6 {
		id := NodeID(binary.BigEndian.Uint32(d))
		n := int(binary.BigEndian.Uint16(d[4:]))
		d = d[6:]
		if n > len(d) {
			break
		}
		name := string(d[:n])
		d = d[n:]

		nameToID[name] = id
		idToNames[id] = append(idToNames[id], name)
	}
	return nameToID, idToNames
}

// NameToID resolves a property name to its node id. A name that parses as a
// decimal integer is taken as a literal id.
func NameToID(fullname string) (NodeID, bool) {
	if v, err := strconv.ParseInt(fullname, 10, 32); err == nil {
		return NodeID(v), true
	}
	propmap.once.Do(initPropmap)
	id, ok := propmap.nameToID[fullname]
	return id, ok
}

// IDToNames delivers the property names mapped to a node id. Several names
// may alias one id; the result is nil for an unknown id.
func IDToNames(id NodeID) []string {
	propmap.once.Do(initPropmap)
	return propmap.idToNames[id]
}
