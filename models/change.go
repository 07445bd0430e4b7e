package models

import (
	"fmt"
	"slices"
	"time"
)

// ChangeKind тип локальной мутации в журнале изменений
type ChangeKind string

// Виды локальных мутаций
const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// Valid проверяет, что значение является известным видом мутации
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// LocalChangeEntry представляет одну строку append-only журнала локальных
// изменений. Строки никогда не изменяются на месте: журнал растет только
// добавлением новых строк и сокращается только подтверждением токена.
type LocalChangeEntry struct {
	CreatedAt    time.Time  `json:"created_at"`    // CreatedAt время записи мутации
	ResourceType string     `json:"resource_type"` // ResourceType вид ресурса
	ResourceID   string     `json:"resource_id"`   // ResourceID идентификатор ресурса
	Kind         ChangeKind `json:"kind"`          // Kind вид мутации: INSERT, UPDATE, DELETE
	Payload      []byte     `json:"payload"`       // Payload полный снимок (INSERT), патч (UPDATE) или пусто (DELETE)
	SequenceID   uint64     `json:"sequence_id"`   // SequenceID монотонно растущий номер строки
}

// Clone создает глубокую копию строки журнала
func (e *LocalChangeEntry) Clone() *LocalChangeEntry {
	payload := make([]byte, len(e.Payload))
	copy(payload, e.Payload)

	return &LocalChangeEntry{
		CreatedAt:    e.CreatedAt,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Kind:         e.Kind,
		Payload:      payload,
		SequenceID:   e.SequenceID,
	}
}

// SquashedChange финальное ожидающее изменение для одного (type, id):
// результат схлопывания всех живых строк журнала по правилам squash-машины.
type SquashedChange struct {
	ResourceType string     `json:"resource_type"` // ResourceType вид ресурса
	ResourceID   string     `json:"resource_id"`   // ResourceID идентификатор ресурса
	Kind         ChangeKind `json:"kind"`          // Kind итоговый вид изменения
	Payload      []byte     `json:"payload"`       // Payload снимок, составной патч или пусто
}

// ChangeToken is an immutable reference to the exact set of log rows that
// were folded into one squashed change. It stays valid and precisely scoped
// even if further mutations are appended for the same resource: acknowledging
// the token never discards work the reader did not see.
type ChangeToken struct {
	seqIDs []uint64
}

// NewChangeToken builds a token from the given sequence ids.
// The ids are copied, de-duplicated and sorted.
func NewChangeToken(seqIDs []uint64) ChangeToken {
	ids := slices.Clone(seqIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return ChangeToken{seqIDs: ids}
}

// SequenceIDs returns a copy of the sequence ids wrapped by the token,
// in ascending order.
func (t ChangeToken) SequenceIDs() []uint64 {
	return slices.Clone(t.seqIDs)
}

// IsZero reports whether the token references no log rows
func (t ChangeToken) IsZero() bool {
	return len(t.seqIDs) == 0
}

// String returns a compact representation for logging
func (t ChangeToken) String() string {
	return fmt.Sprintf("token%v", t.seqIDs)
}

// PendingChange пара, возвращаемая чтением журнала: схлопнутое изменение и
// токен, описывающий ровно те строки, из которых оно получено.
type PendingChange struct {
	Change SquashedChange `json:"change"`
	Token  ChangeToken    `json:"-"`
}
