package harvest

import (
	"sort"
	"strings"
)

// Enriched summary fields attached to every station. The names match
// the column headers expected in the published spreadsheets.
const (
	FieldProtocols  = "Charging Protocols"
	FieldModes      = "EVCS Modes"
	FieldEquipments = "Charging Equipments"
)

var (
	equipmentKeys = []string{"id_or_serial_number", "equipment", "name"}
	modeKeys      = []string{"mode", "evcs_mode"}
)

const protocolKey = "charging_protocol"

// Enrich derives the protocol, mode, and equipment summaries for every
// station from its charge point records. It recomputes from scratch, so
// calling it again after adding records gives the same result as a
// single pass at the end.
func Enrich(set *StationSet) {
	for _, station := range set.Stations() {
		points := unwrapChargepoints(station.Chargepoints)

		protocols := map[string]bool{}
		modes := map[string]bool{}
		equipments := map[string]bool{}
		for _, point := range points {
			for _, protocol := range protocolValues(point[protocolKey]) {
				protocols[protocol] = true
			}
			if mode := firstNonEmpty(point, modeKeys); mode != "" {
				modes[mode] = true
			}
			if equipment := firstNonEmpty(point, equipmentKeys); equipment != "" {
				equipments[equipment] = true
			}
		}

		station.Fields[FieldProtocols] = joinSorted(protocols)
		station.Fields[FieldModes] = joinSorted(modes)
		station.Fields[FieldEquipments] = joinSorted(equipments)
		delete(station.Fields, "chargepoints_summary")
	}
}

// unwrapChargepoints handles the two shapes the site serves: either the
// list holds charge points directly, or each element is a wrapper whose
// own "chargepoints" key holds them.
func unwrapChargepoints(points []map[string]any) []map[string]any {
	if len(points) == 0 {
		return nil
	}
	first := points[0]
	_, hasMode := first["mode"]
	_, hasSerial := first["id_or_serial_number"]
	if hasMode || hasSerial {
		return points
	}

	var out []map[string]any
	for _, wrapper := range points {
		nested, ok := wrapper["chargepoints"].([]any)
		if !ok {
			continue
		}
		for _, item := range nested {
			point, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, point)
		}
	}
	return out
}

// protocolValues accepts both a single protocol value and a list of
// them. Non-string values stringify the way they would print in JSON.
func protocolValues(raw any) []string {
	if list, ok := raw.([]any); ok {
		var out []string
		for _, item := range list {
			if !truthy(item) {
				continue
			}
			out = append(out, stringify(item))
		}
		return out
	}
	if !truthy(raw) {
		return nil
	}
	return []string{stringify(raw)}
}

func firstNonEmpty(point map[string]any, keys []string) string {
	for _, key := range keys {
		if truthy(point[key]) {
			return stringify(point[key])
		}
	}
	return ""
}

func joinSorted(values map[string]bool) string {
	out := make([]string, 0, len(values))
	for value := range values {
		out = append(out, value)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
