package remote

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"fieldsync/internal/logger"
	"fieldsync/internal/protocol"
)

type recorder struct {
	ops []string
}

func (r *recorder) OnInsert(pos int, text string) {
	r.ops = append(r.ops, fmt.Sprintf("insert(%d,%q)", pos, text))
}

func (r *recorder) OnRemove(pos, length int) {
	r.ops = append(r.ops, fmt.Sprintf("remove(%d,%d)", pos, length))
}

func newTestDoc(text string, version uint64) (*Doc, *recorder) {
	r := &recorder{}
	d := &Doc{docID: "doc", siteID: "me", log: logger.Log, text: text, version: version}
	d.SetListener(r)
	return d, r
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := protocol.Encode(v)
	require.NoError(t, err)
	return raw
}

func TestRemoteEditsReachListener(t *testing.T) {
	d, r := newTestDoc("hello", 3)
	changes := 0
	d.onChange = func() { changes++ }

	d.handle(encode(t, protocol.NewInsert("doc", "other", 4, 5, " world")))
	d.handle(encode(t, protocol.NewRemove("doc", "other", 5, 0, 1)))

	require.Equal(t, "ello world", d.Get())
	require.EqualValues(t, 5, d.Version())
	require.Equal(t, []string{`insert(5," world")`, "remove(0,1)"}, r.ops)
	require.Equal(t, 2, changes)
}

func TestOwnEchoIsAcknowledged(t *testing.T) {
	d, r := newTestDoc("ab", 1)
	d.inflight = 1
	d.handle(encode(t, protocol.NewInsert("doc", "me", 2, 2, "c")))
	require.Zero(t, d.inflight)
	require.EqualValues(t, 2, d.Version())
	require.Empty(t, r.ops)
}

func TestConcurrentEditIsSkippedThenResynced(t *testing.T) {
	d, r := newTestDoc("mine", 1)
	d.inflight = 1

	d.handle(encode(t, protocol.NewInsert("doc", "other", 2, 0, "x")))
	require.Equal(t, "mine", d.Get())
	require.Empty(t, r.ops)

	d.handle(encode(t, protocol.NewSnapshot("doc", 2, "xmin")))
	require.Equal(t, "xmin", d.Get())
	require.EqualValues(t, 2, d.Version())
	require.Zero(t, d.inflight)
	require.Equal(t, []string{"remove(0,4)", `insert(0,"xmin")`}, r.ops)
}

func TestInvalidMessagesAreDropped(t *testing.T) {
	d, r := newTestDoc("abc", 1)
	d.handle([]byte(`{"type":"bogus"}`))
	d.handle([]byte(`not json`))
	d.handle(encode(t, protocol.NewInsert("doc", "", 2, 0, "x")))
	require.Equal(t, "abc", d.Get())
	require.Empty(t, r.ops)
}
