package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateOperation(t *testing.T) {
	raw, err := Encode(NewInsert("doc", "site", 4, 2, "hi"))
	require.NoError(t, err)
	op, err := ValidateOperation(raw)
	require.NoError(t, err)
	require.Equal(t, NewInsert("doc", "site", 4, 2, "hi"), *op)

	typ, err := ParseMessageType(raw)
	require.NoError(t, err)
	require.Equal(t, TypeInsert, typ)
}

func TestValidateOperationErrors(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{`{"type":"cursor","docId":"d","siteId":"s"}`, ErrInvalidType},
		{`{"type":"insert","siteId":"s"}`, ErrMissingDocId},
		{`{"type":"remove","docId":"d"}`, ErrMissingSiteId},
		{`{"type":"remove","docId":"d","siteId":"s","pos":-1,"length":1}`, ErrInvalidPosition},
		{`{"type":"remove","docId":"d","siteId":"s","pos":0,"length":-3}`, ErrInvalidPosition},
	}
	for _, c := range cases {
		_, err := ValidateOperation([]byte(c.raw))
		require.ErrorIs(t, err, c.want, c.raw)
	}

	_, err := ValidateOperation([]byte(`{not json`))
	require.Error(t, err)

	big := `{"type":"insert","docId":"d","siteId":"s","text":"` + strings.Repeat("x", MaxPayloadBytes) + `"}`
	_, err = ValidateOperation([]byte(big))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestValidateJoinAndSnapshot(t *testing.T) {
	raw, _ := Encode(NewJoin("doc", "site"))
	j, err := ValidateJoin(raw)
	require.NoError(t, err)
	require.Equal(t, "site", j.SiteId)

	_, err = ValidateJoin([]byte(`{"type":"join","docId":"doc"}`))
	require.ErrorIs(t, err, ErrMissingSiteId)

	raw, _ = Encode(NewSnapshot("doc", 7, "text"))
	s, err := ValidateSnapshot(raw)
	require.NoError(t, err)
	require.EqualValues(t, 7, s.Version)
	require.Equal(t, "text", s.Text)

	_, err = ValidateSnapshot([]byte(`{"type":"join","docId":"doc"}`))
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestSnapshotFits(t *testing.T) {
	require.True(t, SnapshotFits("doc", 1, "hello"))
	require.True(t, SnapshotFits("doc", 1, strings.Repeat("a", 600<<10)))
	require.False(t, SnapshotFits("doc", 2, strings.Repeat("a", 1200<<10)))
	require.False(t, SnapshotFits("doc", 1, strings.Repeat("\x01", 200<<10)), "escaped control bytes count")
}
