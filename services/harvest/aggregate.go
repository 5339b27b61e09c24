package harvest

import (
	"fmt"
	"strconv"

	"github.com/antzucaro/matchr"
)

// keys tried in order when working out which station a charge point
// belongs to
var identityKeys = []string{"id", "station_id"}

const similarNameThreshold = 0.95

// Station is one unique charging station assembled from the page's raw
// charge point records.
type Station struct {
	ID           string
	Fields       map[string]any
	Chargepoints []map[string]any
}

// StationSet keeps stations unique by identity while preserving the
// order they were first seen in.
type StationSet struct {
	byID    map[string]*Station
	order   []string
	skipped int
}

func (s *StationSet) Len() int {
	return len(s.order)
}

// Skipped reports how many charge points were dropped for having no
// attributable station.
func (s *StationSet) Skipped() int {
	return s.skipped
}

// Stations returns the stations in first-seen order.
func (s *StationSet) Stations() []*Station {
	out := make([]*Station, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Chargepoints counts the records attributed across all stations.
func (s *StationSet) Chargepoints() int {
	total := 0
	for _, id := range s.order {
		total += len(s.byID[id].Chargepoints)
	}
	return total
}

// Aggregate folds batches of raw charge point records into a set of
// unique stations. Each record carries its station as an embedded
// sub-record; the first record seen for an identity supplies the
// station's fields, and every record for that identity joins the
// station's charge point list. Records with no attributable station
// are dropped.
func Aggregate(batches [][]map[string]any) *StationSet {
	set := &StationSet{byID: map[string]*Station{}}
	for _, batch := range batches {
		for _, point := range batch {
			embedded, ok := point["station"].(map[string]any)
			if !ok {
				set.skipped++
				continue
			}
			id, ok := stationIdentity(embedded)
			if !ok {
				set.skipped++
				continue
			}

			station, seen := set.byID[id]
			if !seen {
				station = &Station{ID: id, Fields: stationFields(embedded)}
				set.byID[id] = station
				set.order = append(set.order, id)
			}
			station.Chargepoints = append(station.Chargepoints, point)
		}
	}
	return set
}

func stationIdentity(embedded map[string]any) (string, bool) {
	for _, key := range identityKeys {
		value := embedded[key]
		if !truthy(value) {
			continue
		}
		return stringify(value), true
	}
	return "", false
}

// truthy mirrors the upstream data's loose identity semantics: empty
// strings and zero ids fall through to the next candidate key.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case float64:
		return v != 0
	case bool:
		return v
	default:
		return true
	}
}

// stringify renders an identity value the way it would appear in JSON,
// so the number 12 and the string "12" collapse to the same station.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// stationFields copies the embedded station sub-record's fields. Any
// charge point list the sub-record already carried is discarded: the
// station's list is rebuilt from the records actually seen.
func stationFields(embedded map[string]any) map[string]any {
	fields := make(map[string]any, len(embedded))
	for key, value := range embedded {
		if key == "chargepoints" {
			continue
		}
		fields[key] = value
	}
	return fields
}

// SimilarNameWarnings flags station pairs whose establishment names are
// near-identical, which usually means the same site was registered
// twice under different ids. These are surfaced in the run report, not
// merged.
func SimilarNameWarnings(set *StationSet) []string {
	type named struct {
		id   string
		name string
	}
	var names []named
	for _, station := range set.Stations() {
		name, _ := station.Fields["evcs_establishment_name"].(string)
		if name == "" {
			continue
		}
		names = append(names, named{id: station.ID, name: name})
	}

	var warnings []string
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[i].name == names[j].name {
				continue
			}
			score := matchr.JaroWinkler(names[i].name, names[j].name, true)
			if score < similarNameThreshold {
				continue
			}
			warnings = append(warnings, fmt.Sprintf(
				"stations %s and %s have near-identical names (%q vs %q)",
				names[i].id, names[j].id, names[i].name, names[j].name))
		}
	}
	return warnings
}
