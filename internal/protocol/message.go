package protocol

import "github.com/goccy/go-json"

const (
	TypeInsert   = "insert"
	TypeRemove   = "remove"
	TypeJoin     = "join"
	TypeSnapshot = "snapshot"
)

var ValidOperationTypes = map[string]bool{
	TypeInsert: true,
	TypeRemove: true,
}

// Operation is a single insert or remove. From a client, Version is the
// document version the edit was made against; from the server, it is the
// version the edit produced.
type Operation struct {
	Type    string `json:"type"`
	DocId   string `json:"docId"`
	SiteId  string `json:"siteId"`
	Version uint64 `json:"version"`
	Pos     int    `json:"pos"`
	Text    string `json:"text,omitempty"`
	Length  int    `json:"length,omitempty"`
}

func NewInsert(docId, siteId string, version uint64, pos int, text string) Operation {
	return Operation{Type: TypeInsert, DocId: docId, SiteId: siteId, Version: version, Pos: pos, Text: text}
}

func NewRemove(docId, siteId string, version uint64, pos, length int) Operation {
	return Operation{Type: TypeRemove, DocId: docId, SiteId: siteId, Version: version, Pos: pos, Length: length}
}

type JoinMessage struct {
	Type   string `json:"type"`
	DocId  string `json:"docId"`
	SiteId string `json:"siteId"`
}

func NewJoin(docId, siteId string) JoinMessage {
	return JoinMessage{Type: TypeJoin, DocId: docId, SiteId: siteId}
}

// Snapshot carries the full document, sent on join and after a stale edit.
type Snapshot struct {
	Type    string `json:"type"`
	DocId   string `json:"docId"`
	Version uint64 `json:"version"`
	Text    string `json:"text"`
}

func NewSnapshot(docId string, version uint64, text string) Snapshot {
	return Snapshot{Type: TypeSnapshot, DocId: docId, Version: version, Text: text}
}

// Encode marshals a message for the wire.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
