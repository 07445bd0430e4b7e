// Package patch computes structural diffs between JSON documents and
// composes sequential diffs into one equivalent patch.
//
// Patches are expressed as the add/remove/replace subset of RFC 6902
// (JSON Patch) with JSON Pointer paths, so they stay interoperable with
// standard patch tooling on the wire and on the server side.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Операции патча (подмножество RFC 6902)
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
)

// Operation одна структурная операция над JSON-документом
type Operation struct {
	Op    string          `json:"op"`              // Op вид операции: add, remove, replace
	Path  string          `json:"path"`            // Path JSON Pointer до изменяемого поля
	Value json.RawMessage `json:"value,omitempty"` // Value новое значение (отсутствует для remove)
}

// Clone создает глубокую копию операции
func (o Operation) Clone() Operation {
	value := make(json.RawMessage, len(o.Value))
	copy(value, o.Value)
	return Operation{Op: o.Op, Path: o.Path, Value: value}
}

// Patch упорядоченная последовательность операций
type Patch []Operation

// Marshal serializes the patch as a canonical RFC 6902 JSON array
func (p Patch) Marshal() ([]byte, error) {
	if p == nil {
		p = Patch{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch: %w", err)
	}
	return data, nil
}

// Decode parses a serialized RFC 6902 JSON array back into a Patch
func Decode(data []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal patch: %w", err)
	}
	for _, op := range p {
		switch op.Op {
		case OpAdd, OpRemove, OpReplace:
		default:
			return nil, fmt.Errorf("unsupported patch operation %q", op.Op)
		}
	}
	return p, nil
}

// Canonical re-serializes a JSON document into its canonical form:
// object keys sorted, insignificant whitespace dropped. Identical documents
// always canonicalize to identical bytes, which keeps diffs deterministic.
func Canonical(doc []byte) ([]byte, error) {
	v, err := decodeDocument(doc)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	return out, nil
}

// decodeDocument разбирает JSON-документ в дерево значений.
// Числа сохраняются как json.Number: содержимое непрозрачно для ядра, и
// прогон целых больше 2^53 через float64 молча исказил бы его.
func decodeDocument(doc []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("failed to parse document: trailing data")
	}
	return v, nil
}

// escapeToken экранирует сегмент пути по правилам JSON Pointer (RFC 6901)
func escapeToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// isDescendant reports whether path lies strictly below ancestor
func isDescendant(path, ancestor string) bool {
	if ancestor == "" {
		return path != ""
	}
	return strings.HasPrefix(path, ancestor+"/")
}
