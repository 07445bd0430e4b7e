package patch

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Diff computes the ordered sequence of add/remove/replace operations
// transforming oldDoc into newDoc.
//
// The walk is deterministic: object keys are visited in sorted order, so
// identical (oldDoc, newDoc) pairs always yield byte-identical patches.
// Arrays are compared atomically (any difference replaces the whole array):
// this keeps every path index-free, which is what makes two diffs composable
// without index arithmetic.
func Diff(oldDoc, newDoc []byte) (Patch, error) {
	oldVal, err := decodeDocument(oldDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse old document: %w", err)
	}
	newVal, err := decodeDocument(newDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse new document: %w", err)
	}

	p := Patch{}
	if err := diffValue("", oldVal, newVal, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// diffValue рекурсивно сравнивает два значения по пути path
func diffValue(path string, oldVal, newVal any, p *Patch) error {
	oldMap, oldIsMap := oldVal.(map[string]any)
	newMap, newIsMap := newVal.(map[string]any)

	// Только объекты сравниваются по полям; все остальное атомарно
	if !oldIsMap || !newIsMap {
		if !reflect.DeepEqual(oldVal, newVal) {
			value, err := json.Marshal(newVal)
			if err != nil {
				return fmt.Errorf("failed to serialize value at %q: %w", path, err)
			}
			*p = append(*p, Operation{Op: OpReplace, Path: path, Value: value})
		}
		return nil
	}

	// Объединяем ключи обоих объектов и обходим в отсортированном порядке
	keys := make([]string, 0, len(oldMap)+len(newMap))
	seen := make(map[string]struct{}, len(oldMap)+len(newMap))
	for k := range oldMap {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	for k := range newMap {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		childPath := path + "/" + escapeToken(k)
		oldChild, inOld := oldMap[k]
		newChild, inNew := newMap[k]

		switch {
		case inOld && !inNew:
			*p = append(*p, Operation{Op: OpRemove, Path: childPath})
		case !inOld && inNew:
			value, err := json.Marshal(newChild)
			if err != nil {
				return fmt.Errorf("failed to serialize value at %q: %w", childPath, err)
			}
			*p = append(*p, Operation{Op: OpAdd, Path: childPath, Value: value})
		default:
			if err := diffValue(childPath, oldChild, newChild, p); err != nil {
				return err
			}
		}
	}
	return nil
}
