package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// OpType is the kind of mutation an offline operation records.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Valid reports whether t is a known op type.
func (t OpType) Valid() bool {
	switch t {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// EntityKind names the entity an offline operation targets. Only tasks and
// attachments are synchronized.
type EntityKind string

const (
	EntityTask       EntityKind = "task"
	EntityAttachment EntityKind = "attachment"
)

// Valid reports whether k is a synchronized entity kind.
func (k EntityKind) Valid() bool {
	return k == EntityTask || k == EntityAttachment
}

// OfflineOp is one entry of the offline mutation queue.
//
// Timestamp is when the operation was recorded, not the entity's UpdatedAt.
// It defines replay order and is the local side of conflict resolution.
type OfflineOp struct {
	ID         int64      `json:"id" yaml:"id"`
	OpID       string     `json:"opId" yaml:"opId"`
	OpType     OpType     `json:"opType" yaml:"opType"`
	Entity     EntityKind `json:"entity" yaml:"entity"`
	EntityID   int64      `json:"entityId" yaml:"entityId"`
	Payload    Payload    `json:"payload" yaml:"payload"`
	Timestamp  time.Time  `json:"timestamp" yaml:"timestamp"`
	Synced     bool       `json:"synced" yaml:"synced"`
	RetryCount int        `json:"retryCount" yaml:"retryCount"`
	LastError  string     `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

// Payload is the body of an offline operation. The concrete type is fixed by
// the (OpType, Entity) pair:
//
//	create/task        TaskRecord       full record
//	update/task        TaskDelta        changed fields only
//	create/attachment  AttachmentRecord full record without binary data
//	update/attachment  AttachmentDelta  changed fields only
//	delete/*           nil
type Payload interface {
	OpType() OpType
	Entity() EntityKind
}

// TaskRecord is the create payload for tasks.
type TaskRecord struct {
	Task
}

func (TaskRecord) OpType() OpType     { return OpCreate }
func (TaskRecord) Entity() EntityKind { return EntityTask }

// TaskDelta is the update payload for tasks. It is the patch as requested,
// not the merged record, so a diff-based protocol can replay it.
type TaskDelta struct {
	TaskPatch
}

func (TaskDelta) OpType() OpType     { return OpUpdate }
func (TaskDelta) Entity() EntityKind { return EntityTask }

// AttachmentRecord is the create payload for attachments.
type AttachmentRecord struct {
	Attachment
}

func (AttachmentRecord) OpType() OpType     { return OpCreate }
func (AttachmentRecord) Entity() EntityKind { return EntityAttachment }

// AttachmentDelta is the update payload for attachments.
type AttachmentDelta struct {
	AttachmentPatch
}

func (AttachmentDelta) OpType() OpType     { return OpUpdate }
func (AttachmentDelta) Entity() EntityKind { return EntityAttachment }

// CheckPayload verifies that p is the payload shape required for
// (opType, entity).
func CheckPayload(opType OpType, entity EntityKind, p Payload) error {
	if !opType.Valid() {
		return fmt.Errorf("invalid op type %q", opType)
	}
	if !entity.Valid() {
		return fmt.Errorf("invalid entity %q", entity)
	}
	if opType == OpDelete {
		if p != nil {
			return fmt.Errorf("delete %s carries no payload, got %T", entity, p)
		}
		return nil
	}
	if p == nil {
		return fmt.Errorf("%s %s requires a payload", opType, entity)
	}
	if p.OpType() != opType || p.Entity() != entity {
		return fmt.Errorf("payload %T does not match %s %s", p, opType, entity)
	}
	return nil
}

// EncodePayload serializes a payload for storage. Delete payloads encode to
// nil.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", p, err)
	}
	return data, nil
}

// DecodePayload restores the payload stored for (opType, entity).
func DecodePayload(opType OpType, entity EntityKind, data []byte) (Payload, error) {
	if opType == OpDelete {
		return nil, nil
	}

	var p Payload
	switch {
	case opType == OpCreate && entity == EntityTask:
		var rec TaskRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode task record: %w", err)
		}
		p = rec
	case opType == OpUpdate && entity == EntityTask:
		var delta TaskDelta
		if err := json.Unmarshal(data, &delta); err != nil {
			return nil, fmt.Errorf("failed to decode task delta: %w", err)
		}
		p = delta
	case opType == OpCreate && entity == EntityAttachment:
		var rec AttachmentRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode attachment record: %w", err)
		}
		p = rec
	case opType == OpUpdate && entity == EntityAttachment:
		var delta AttachmentDelta
		if err := json.Unmarshal(data, &delta); err != nil {
			return nil, fmt.Errorf("failed to decode attachment delta: %w", err)
		}
		p = delta
	default:
		return nil, fmt.Errorf("no payload shape for %s %s", opType, entity)
	}
	return p, nil
}
