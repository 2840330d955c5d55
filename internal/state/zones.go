package state

import (
	"bytes"
	"encoding/json"

	"github.com/strefethen/volumio-hub-go/internal/volumio"
)

// ReconcileZones collapses a zones payload to a name->status mapping of
// every non-self zone, serialized in source order, and reports whether the
// serialized form differs from the previous one. There is no per-field
// diffing: any difference in the whole zone set is one update.
func ReconcileZones(prev string, zones []volumio.Zone) (next string, changed bool) {
	next = serializeZones(zones)
	return next, next != prev
}

// serializeZones builds the JSON object by hand so zone order follows the
// payload instead of map key sorting.
func serializeZones(zones []volumio.Zone) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, zone := range zones {
		if zone.IsSelf {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		name, _ := json.Marshal(zone.Name)
		status, _ := json.Marshal(zone.Status)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(status)
	}
	buf.WriteByte('}')
	return buf.String()
}
