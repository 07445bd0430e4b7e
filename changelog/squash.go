// Package changelog implements the squashing state machine of the local
// change log: deriving the pending-change state of a resource from its live
// log rows, and collapsing those rows into at most one canonical pending
// change per resource.
//
// The package is pure: it never touches storage. Callers hand it the live
// rows for a resource (in sequence order) and get back decisions.
package changelog

import (
	"fmt"

	"github.com/medisync/healthstore/models"
	"github.com/medisync/healthstore/patch"
	"github.com/medisync/healthstore/storage"
)

// State неявное состояние ресурса, выводимое из живых строк журнала
type State int

// Состояния squash-машины
const (
	StateNone        State = iota // ни записи, ни ожидающих изменений
	StateLocalNew                 // запись создана локально и не синхронизирована
	StateRemoteBase               // запись совпадает с подтвержденной сервером
	StateLocalEdit                // запись изменена локально относительно базовой
	StateLocalDelete              // запись удалена локально
)

// String returns the state name for logging
func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateLocalNew:
		return "LOCAL_NEW"
	case StateRemoteBase:
		return "REMOTE_BASE"
	case StateLocalEdit:
		return "LOCAL_EDIT"
	case StateLocalDelete:
		return "LOCAL_DELETE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DeriveState выводит состояние ресурса из наличия записи и живых строк
// журнала (в порядке sequence id). Формы журнала, которые переходная
// таблица не может породить, означают нарушение атомарности хранилища и
// возвращают storage.ErrIntegrityViolation.
func DeriveState(recordExists bool, entries []models.LocalChangeEntry) (State, error) {
	if len(entries) == 0 {
		if recordExists {
			return StateRemoteBase, nil
		}
		return StateNone, nil
	}

	last := entries[len(entries)-1]

	// DELETE может быть только последней живой строкой
	for _, e := range entries[:len(entries)-1] {
		if e.Kind == models.ChangeDelete {
			return StateNone, fmt.Errorf("live entries after DELETE %d: %w", e.SequenceID, storage.ErrIntegrityViolation)
		}
	}

	switch last.Kind {
	case models.ChangeDelete:
		// Предшествовать удалению могут только UPDATE-строки
		for _, e := range entries[:len(entries)-1] {
			if e.Kind != models.ChangeUpdate {
				return StateNone, fmt.Errorf("%s entry %d precedes DELETE: %w", e.Kind, e.SequenceID, storage.ErrIntegrityViolation)
			}
		}
		if recordExists {
			return StateNone, fmt.Errorf("record present with pending DELETE: %w", storage.ErrIntegrityViolation)
		}
		return StateLocalDelete, nil

	case models.ChangeInsert:
		// Локальная линия жизни: только INSERT-снимки
		for _, e := range entries {
			if e.Kind != models.ChangeInsert {
				return StateNone, fmt.Errorf("%s entry %d mixed into insert lineage: %w", e.Kind, e.SequenceID, storage.ErrIntegrityViolation)
			}
		}
		if !recordExists {
			return StateNone, fmt.Errorf("pending INSERT without record: %w", storage.ErrIntegrityViolation)
		}
		return StateLocalNew, nil

	case models.ChangeUpdate:
		for _, e := range entries {
			if e.Kind != models.ChangeUpdate {
				return StateNone, fmt.Errorf("%s entry %d mixed into update lineage: %w", e.Kind, e.SequenceID, storage.ErrIntegrityViolation)
			}
		}
		if !recordExists {
			return StateNone, fmt.Errorf("pending UPDATE without record: %w", storage.ErrIntegrityViolation)
		}
		return StateLocalEdit, nil
	}

	return StateNone, fmt.Errorf("unknown change kind %q: %w", last.Kind, storage.ErrIntegrityViolation)
}

// Squash схлопывает живые строки одного (type, id) в единственное
// каноническое ожидающее изменение и токен, охватывающий ровно эти строки:
//
//   - последняя строка DELETE → изменение DELETE с пустым payload;
//   - линия INSERT-снимков → изменение INSERT с последним снимком;
//   - цепочка UPDATE-патчей → изменение UPDATE с их композицией по порядку.
func Squash(entries []models.LocalChangeEntry) (models.SquashedChange, models.ChangeToken, error) {
	var change models.SquashedChange

	if len(entries) == 0 {
		return change, models.ChangeToken{}, fmt.Errorf("squash of empty entry set: %w", storage.ErrIntegrityViolation)
	}

	last := entries[len(entries)-1]
	change.ResourceType = last.ResourceType
	change.ResourceID = last.ResourceID

	seqIDs := make([]uint64, 0, len(entries))
	for _, e := range entries {
		seqIDs = append(seqIDs, e.SequenceID)
	}
	token := models.NewChangeToken(seqIDs)

	switch last.Kind {
	case models.ChangeDelete:
		change.Kind = models.ChangeDelete

	case models.ChangeInsert:
		change.Kind = models.ChangeInsert
		change.Payload = last.Payload

	case models.ChangeUpdate:
		patches := make([]patch.Patch, 0, len(entries))
		for _, e := range entries {
			p, err := patch.Decode(e.Payload)
			if err != nil {
				return change, models.ChangeToken{}, fmt.Errorf("failed to decode patch of entry %d: %w", e.SequenceID, err)
			}
			patches = append(patches, p)
		}

		payload, err := patch.ComposeAll(patches).Marshal()
		if err != nil {
			return change, models.ChangeToken{}, err
		}

		change.Kind = models.ChangeUpdate
		change.Payload = payload

	default:
		return change, models.ChangeToken{}, fmt.Errorf("unknown change kind %q: %w", last.Kind, storage.ErrIntegrityViolation)
	}

	return change, token, nil
}

// SquashAll группирует живые строки по (type, id), сохраняя порядок первого
// появления, и схлопывает каждую группу
func SquashAll(entries []models.LocalChangeEntry) ([]models.PendingChange, error) {
	type key struct {
		resourceType string
		resourceID   string
	}

	var order []key
	groups := make(map[key][]models.LocalChangeEntry)

	for _, e := range entries {
		k := key{resourceType: e.ResourceType, resourceID: e.ResourceID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	pending := make([]models.PendingChange, 0, len(order))
	for _, k := range order {
		change, token, err := Squash(groups[k])
		if err != nil {
			return nil, err
		}
		pending = append(pending, models.PendingChange{Change: change, Token: token})
	}

	return pending, nil
}
