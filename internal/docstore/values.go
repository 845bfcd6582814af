package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// TimeLayout is fixed width so stored timestamps sort lexicographically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// prepareCreate resolves transforms for a new document. A union seeds the array with
// its values and a removal yields an empty array.
func prepareCreate(data Document, now time.Time) (Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	out := make(Document, len(data))
	for key, value := range data {
		if err := checkField(key); err != nil {
			return nil, err
		}
		var resolved any
		switch t := value.(type) {
		case arrayUnion:
			arr := []any{}
			for _, v := range t.values {
				cv, err := canonical(v, now)
				if err != nil {
					return nil, err
				}
				if !containsValue(arr, cv) {
					arr = append(arr, cv)
				}
			}
			resolved = arr
		case arrayRemove:
			resolved = []any{}
		default:
			cv, err := canonical(value, now)
			if err != nil {
				return nil, err
			}
			resolved = cv
		}
		out[key] = resolved
	}
	return out, nil
}

// applyPatch returns a new document with patch merged into current. current is not
// modified.
func applyPatch(current Document, patch Document, now time.Time) (Document, error) {
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: empty patch", ErrInvalidPatch)
	}
	next := make(Document, len(current)+len(patch))
	for k, v := range current {
		next[k] = v
	}
	for key, value := range patch {
		if err := checkField(key); err != nil {
			return nil, err
		}
		switch t := value.(type) {
		case arrayUnion:
			arr := append([]any{}, asArray(next[key])...)
			for _, v := range t.values {
				cv, err := canonical(v, now)
				if err != nil {
					return nil, err
				}
				if !containsValue(arr, cv) {
					arr = append(arr, cv)
				}
			}
			next[key] = arr
		case arrayRemove:
			removals := make([]any, 0, len(t.values))
			for _, v := range t.values {
				cv, err := canonical(v, now)
				if err != nil {
					return nil, err
				}
				removals = append(removals, cv)
			}
			arr := []any{}
			for _, el := range asArray(next[key]) {
				if !containsValue(removals, el) {
					arr = append(arr, el)
				}
			}
			next[key] = arr
		default:
			cv, err := canonical(value, now)
			if err != nil {
				return nil, err
			}
			next[key] = cv
		}
	}
	return next, nil
}

func checkField(key string) error {
	if key == "" || strings.ContainsAny(key, ".\x00") {
		return fmt.Errorf("%w: bad field name %q", ErrInvalidPatch, key)
	}
	return nil
}

// canonical converts v into the JSON shape every store hands back.
func canonical(v any, now time.Time) (any, error) {
	resolved, err := resolveTimes(v, now)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return out, nil
}

func resolveTimes(v any, now time.Time) (any, error) {
	switch t := v.(type) {
	case serverTimestamp:
		return FormatTime(now), nil
	case arrayUnion, arrayRemove:
		return nil, fmt.Errorf("%w: array transforms are only allowed at the top level", ErrInvalidPatch)
	case time.Time:
		return FormatTime(t), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return FormatTime(*t), nil
	case Document:
		return resolveMap(t, now)
	case map[string]any:
		return resolveMap(t, now)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			r, err := resolveTimes(el, now)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, el := range t {
			r, err := resolveMap(el, now)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveMap(m map[string]any, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		r, err := resolveTimes(v, now)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	return out, nil
}

func asArray(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return nil
}

func containsValue(arr []any, v any) bool {
	for _, el := range arr {
		if reflect.DeepEqual(el, v) {
			return true
		}
	}
	return false
}

// sortSnapshots orders snaps in place by q.OrderBy, breaking ties by id ascending.
func sortSnapshots(snaps []Snapshot, q Query) {
	sort.SliceStable(snaps, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(snaps[i].Data[q.OrderBy], snaps[j].Data[q.OrderBy])
			if q.Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return snaps[i].ID < snaps[j].ID
	})
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

// compareValues orders JSON values: null < bool < number < string < array < object.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(av, b.(string))
	case []any:
		bv := b.([]any)
		switch {
		case len(av) < len(bv):
			return -1
		case len(av) > len(bv):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func cloneDocument(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
