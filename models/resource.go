package models

import "encoding/json"

// Resource представляет типизированный ресурс медицинской карты.
// Content хранится как непрозрачный JSON-документ: ядро никогда не
// интерпретирует доменную семантику содержимого, только диффит его.
type Resource struct {
	Type    string          `json:"resource_type"` // Type идентификатор вида ресурса (например, "Patient")
	ID      string          `json:"id"`            // ID уникальный идентификатор ресурса (UUID)
	Content json.RawMessage `json:"content"`       // Content полный JSON-документ ресурса
}

// Clone создает глубокую копию ресурса
func (r *Resource) Clone() *Resource {
	content := make(json.RawMessage, len(r.Content))
	copy(content, r.Content)

	return &Resource{
		Type:    r.Type,
		ID:      r.ID,
		Content: content,
	}
}
