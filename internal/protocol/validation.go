package protocol

import (
	"errors"

	"github.com/goccy/go-json"
)

const MaxPayloadBytes = 1 << 20

var (
	ErrInvalidType     = errors.New("invalid message type")
	ErrMissingDocId    = errors.New("missing docId")
	ErrMissingSiteId   = errors.New("missing siteId")
	ErrInvalidPosition = errors.New("negative position or length")
	ErrPayloadTooLarge = errors.New("payload exceeds max size")
	ErrDocumentFull    = errors.New("document snapshot would exceed max size")
)

// JSON escaping grows text at most sixfold (\u00XX); the rest of a snapshot
// stays under snapshotOverhead bytes for any valid doc id.
const (
	maxEscapeGrowth  = 6
	snapshotOverhead = 2048
)

// SnapshotFits reports whether a snapshot of text for docId stays within
// MaxPayloadBytes, so peers can still join and resync.
func SnapshotFits(docId string, version uint64, text string) bool {
	if len(text)*maxEscapeGrowth+snapshotOverhead <= MaxPayloadBytes {
		return true
	}
	raw, err := Encode(NewSnapshot(docId, version, text))
	return err == nil && len(raw) <= MaxPayloadBytes
}

func ParseMessageType(raw []byte) (msgType string, err error) {
	if len(raw) > MaxPayloadBytes {
		return "", ErrPayloadTooLarge
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

func ValidateOperation(raw []byte) (*Operation, error) {
	if len(raw) > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	var op Operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, err
	}
	if !ValidOperationTypes[op.Type] {
		return nil, ErrInvalidType
	}
	if op.DocId == "" {
		return nil, ErrMissingDocId
	}
	if op.SiteId == "" {
		return nil, ErrMissingSiteId
	}
	if op.Pos < 0 || op.Length < 0 {
		return nil, ErrInvalidPosition
	}
	return &op, nil
}

func ValidateJoin(raw []byte) (*JoinMessage, error) {
	if len(raw) > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	var j JoinMessage
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	if j.Type != TypeJoin {
		return nil, ErrInvalidType
	}
	if j.DocId == "" {
		return nil, ErrMissingDocId
	}
	if j.SiteId == "" {
		return nil, ErrMissingSiteId
	}
	return &j, nil
}

func ValidateSnapshot(raw []byte) (*Snapshot, error) {
	if len(raw) > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.Type != TypeSnapshot {
		return nil, ErrInvalidType
	}
	if s.DocId == "" {
		return nil, ErrMissingDocId
	}
	return &s, nil
}
