package patch

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
)

// Apply applies the patch to a JSON document and returns the canonical
// result. Non-root operations are delegated to evanphx/json-patch, which
// implements full RFC 6902 semantics for the operations Diff produces.
//
// Operations at path "" are handled here: Diff emits a root replace whenever
// a document's root is not a JSON object (array- or scalar-rooted content,
// or a root type change), and the library rejects ops addressing the root.
func Apply(doc []byte, p Patch) ([]byte, error) {
	current := append([]byte(nil), doc...)
	var pending Patch

	// Применяет накопленные некорневые операции к current
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}

		data, err := pending.Marshal()
		if err != nil {
			return err
		}

		ops, err := jsonpatch.DecodePatch(data)
		if err != nil {
			return fmt.Errorf("failed to decode patch: %w", err)
		}

		out, err := ops.Apply(current)
		if err != nil {
			return fmt.Errorf("failed to apply patch: %w", err)
		}

		current = out
		pending = pending[:0]
		return nil
	}

	for _, op := range p {
		if op.Path != "" {
			pending = append(pending, op)
			continue
		}

		if op.Op == OpRemove {
			return nil, fmt.Errorf("remove at document root is not supported")
		}

		// Корневая операция переписывает документ целиком; предшествующие
		// операции применяются первыми, сохраняя последовательную семантику
		if err := flush(); err != nil {
			return nil, err
		}
		current = append([]byte(nil), op.Value...)
	}

	if err := flush(); err != nil {
		return nil, err
	}

	// Нормализуем результат, чтобы сравнение было побайтовым
	return Canonical(current)
}
