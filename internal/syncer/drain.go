package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/queue"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
)

// fkFields are the payload keys that may hold entity references and must
// be translated before the payload ships.
var fkFields = []string{"month_id", "subcategory_id", "recurring_expense_id", "goal_id"}

// drainQueue delivers the family's pending mutations to the backend.
//
// The envelope's family id decides which remote family receives the
// mutation; a family_id inside the payload is untrusted input and is
// dropped, along with any id field, before the payload is forwarded.
//
// During a migration (m.family set) the first failure aborts so the
// family is never finalized with undelivered history. In a standalone
// drain failures are recorded and the drain moves on; the retry ceiling
// eventually parks repeat offenders as dead letters.
func (m *migration) drainQueue(ctx context.Context) (int, error) {
	queueFamilyID := m.remoteFamilyID
	migrating := m.family != nil
	if migrating {
		queueFamilyID = m.family.ID
	}

	items, err := m.engine.queue.Pending(ctx, queueFamilyID)
	if err != nil {
		return 0, fmt.Errorf("failed to read queue: %w", err)
	}

	m.onProgress(Progress{Stage: "queue", Done: 0, Total: len(items),
		Details: fmt.Sprintf("draining %d queued mutations", len(items))})
	drained := 0
	for i, item := range items {
		if err := m.deliver(ctx, item); err != nil {
			if markErr := m.engine.queue.MarkFailed(ctx, item.ID, err); markErr != nil {
				return drained, markErr
			}
			if migrating {
				return drained, fmt.Errorf("failed to deliver queued %s %s: %w",
					item.Action, item.Kind, err)
			}
			m.engine.logger.Printf("[sync] queued %s %s %s failed, will retry: %v",
				item.Action, item.Kind, item.EntityID, err)
			continue
		}
		if err := m.engine.queue.Remove(ctx, item.ID); err != nil {
			return drained, err
		}
		drained++
		m.onProgress(Progress{Stage: "queue", Done: i + 1, Total: len(items),
			Details: fmt.Sprintf("%s %s %s", item.Action, item.Kind, item.EntityID)})
	}
	return drained, nil
}

func (m *migration) deliver(ctx context.Context, item *queue.Item) error {
	backend := m.engine.backend

	switch item.Action {
	case types.ActionInsert:
		data, err := m.payloadFor(item)
		if err != nil {
			return err
		}
		remoteID, err := backend.Insert(ctx, m.remoteFamilyID, item.Kind, item.EntityID, data)
		if err != nil {
			return err
		}
		// Later queued mutations may reference this row by its local id.
		m.mapping[item.EntityID] = remoteID
		return nil

	case types.ActionUpdate:
		id, err := m.translate(item.EntityID)
		if err != nil {
			return err
		}
		data, err := m.payloadFor(item)
		if err != nil {
			return err
		}
		return backend.Update(ctx, m.remoteFamilyID, item.Kind, id, data)

	case types.ActionDelete:
		id, err := m.translate(item.EntityID)
		if err != nil {
			return err
		}
		return backend.Delete(ctx, m.remoteFamilyID, item.Kind, id)

	default:
		return fmt.Errorf("unknown queued action %q", item.Action)
	}
}

// payloadFor decodes the envelope's payload and sanitizes it: identity
// fields are stripped and reference fields are translated to remote ids.
func (m *migration) payloadFor(item *queue.Item) (map[string]any, error) {
	data := make(map[string]any)
	if len(item.Data) > 0 {
		if err := json.Unmarshal(item.Data, &data); err != nil {
			return nil, fmt.Errorf("malformed queue payload: %w", err)
		}
	}

	// The envelope decided the family and the entity already; the payload
	// gets no say.
	delete(data, "family_id")
	delete(data, "id")

	for _, field := range fkFields {
		raw, ok := data[field]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("queue payload field %s is not a string", field)
		}
		translated, err := m.translate(s)
		if err != nil {
			return nil, err
		}
		data[field] = translated
	}
	return data, nil
}
