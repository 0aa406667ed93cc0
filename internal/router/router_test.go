package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleRelay(t *testing.T) {
	s := NewSelector([]string{"ws://a/ws"})
	require.Equal(t, "ws://a/ws", s.Relay("doc"))
	require.Equal(t, []string{"ws://a/ws"}, s.Rank("doc"))
}

func TestNoRelays(t *testing.T) {
	s := NewSelector(nil)
	require.Equal(t, "", s.Relay("doc"))
	require.Empty(t, s.Rank("doc"))
}

func TestRankIsStableAndComplete(t *testing.T) {
	relays := []string{"ws://a/ws", "ws://b/ws", "ws://c/ws"}
	s := NewSelector(relays)
	for i := 0; i < 50; i++ {
		doc := fmt.Sprintf("doc-%d", i)
		ranked := s.Rank(doc)
		require.ElementsMatch(t, relays, ranked)
		require.Equal(t, ranked, s.Rank(doc))
		require.Equal(t, ranked[0], s.Relay(doc))
	}
}

func TestRemovingRelayOnlyMovesItsDocs(t *testing.T) {
	s := NewSelector([]string{"ws://a/ws", "ws://b/ws", "ws://c/ws"})
	before := map[string]string{}
	for i := 0; i < 200; i++ {
		doc := fmt.Sprintf("doc-%d", i)
		before[doc] = s.Relay(doc)
	}
	s.SetRelays([]string{"ws://a/ws", "ws://b/ws"})
	for doc, relay := range before {
		if relay != "ws://c/ws" {
			require.Equal(t, relay, s.Relay(doc), doc)
		}
	}
}
