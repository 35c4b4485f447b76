package cohortsync

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/PratikDhanave/cohort-sync-service/internal/models"
)

// TrackedProperty is the property/value pair an event contributes.
type TrackedProperty struct {
	Name  string
	Value any
}

type propEntry struct {
	key   string
	value gjson.Result
}

// HasPersonData reports whether the event carries properties or top-level
// $set/$set_once data.
func HasPersonData(ev models.PluginEvent) bool {
	return present(ev.Properties) || present(ev.Set) || present(ev.SetOnce)
}

// SelectTrackedProperty returns the first tracked entry of the event's merged
// person properties. Sources are merged as properties.$set, properties.$set_once,
// $set_once, $set: a later source overrides the value of a key seen earlier
// but the key keeps its original position.
func SelectTrackedProperty(ev models.PluginEvent, tracks func(string) bool) (TrackedProperty, bool) {
	if !HasPersonData(ev) {
		return TrackedProperty{}, false
	}

	for _, e := range mergePersonProperties(ev) {
		if tracks(e.key) {
			return TrackedProperty{Name: e.key, Value: e.value.Value()}, true
		}
	}
	return TrackedProperty{}, false
}

func mergePersonProperties(ev models.PluginEvent) []propEntry {
	props := parseObject(ev.Properties)
	sources := []gjson.Result{
		field(props, "$set"),
		field(props, "$set_once"),
		parseObject(ev.SetOnce),
		parseObject(ev.Set),
	}

	index := map[string]int{}
	var entries []propEntry
	for _, src := range sources {
		if !src.IsObject() {
			continue
		}
		src.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			if i, ok := index[key]; ok {
				entries[i].value = v
				return true
			}
			index[key] = len(entries)
			entries = append(entries, propEntry{key: key, value: v})
			return true
		})
	}
	return entries
}

// field looks name up among obj's direct members. gjson paths treat some
// characters specially, so keys are compared literally. The last duplicate wins.
func field(obj gjson.Result, name string) gjson.Result {
	var out gjson.Result
	if !obj.IsObject() {
		return out
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == name {
			out = v
		}
		return true
	})
	return out
}

func parseObject(raw json.RawMessage) gjson.Result {
	if !present(raw) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(raw)
}

func present(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	r := gjson.ParseBytes(raw)
	return r.Exists() && r.Type != gjson.Null
}

// FormatValue renders a property value the way it appears in cohort names and
// dedup keys.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// DedupKey is the storage key recording that a cohort exists for the pair.
func DedupKey(property string, value any) string {
	return property + "_" + FormatValue(value)
}
