package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/goccy/go-json"
)

var (
	// Relay.
	OpsProcessedTotal      atomic.Uint64
	OpsRejectedTotal       atomic.Uint64
	ConnectionsTotal       atomic.Uint64
	BackpressureDropsTotal atomic.Uint64
	SendSkipsTotal         atomic.Uint64
	ActiveConnections      atomic.Uint64
	ActiveRooms            atomic.Uint64
	ActivePeers            atomic.Uint64

	// Bindings.
	LocalOpsTotal    atomic.Uint64
	RemoteOpsTotal   atomic.Uint64
	DiffSkipsTotal   atomic.Uint64
	ResyncsTotal     atomic.Uint64
	AttachmentsTotal atomic.Uint64
)

func IncOpsProcessed()        { OpsProcessedTotal.Add(1) }
func IncOpsRejected()         { OpsRejectedTotal.Add(1) }
func IncConnections()         { ConnectionsTotal.Add(1) }
func IncBackpressure()        { BackpressureDropsTotal.Add(1) }
func IncSendSkips()           { SendSkipsTotal.Add(1) }
func SetActiveConns(n uint64) { ActiveConnections.Store(n) }
func SetActiveRooms(n uint64) { ActiveRooms.Store(n) }
func SetActivePeers(n uint64) { ActivePeers.Store(n) }

func IncLocalOps()    { LocalOpsTotal.Add(1) }
func IncRemoteOps()   { RemoteOpsTotal.Add(1) }
func IncDiffSkips()   { DiffSkipsTotal.Add(1) }
func IncResyncs()     { ResyncsTotal.Add(1) }
func IncAttachments() { AttachmentsTotal.Add(1) }

type sample struct {
	name string
	kind string
	v    *atomic.Uint64
}

var samples = []sample{
	{"ops_processed_total", "counter", &OpsProcessedTotal},
	{"ops_rejected_total", "counter", &OpsRejectedTotal},
	{"connections_total", "counter", &ConnectionsTotal},
	{"backpressure_drops_total", "counter", &BackpressureDropsTotal},
	{"send_skips_total", "counter", &SendSkipsTotal},
	{"active_connections", "gauge", &ActiveConnections},
	{"active_rooms", "gauge", &ActiveRooms},
	{"active_peers", "gauge", &ActivePeers},
	{"local_ops_total", "counter", &LocalOpsTotal},
	{"remote_ops_total", "counter", &RemoteOpsTotal},
	{"diff_skips_total", "counter", &DiffSkipsTotal},
	{"resyncs_total", "counter", &ResyncsTotal},
	{"attachments_total", "counter", &AttachmentsTotal},
}

// Snapshot returns the current value of every counter and gauge.
func Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(samples))
	for _, s := range samples {
		out[s.name] = s.v.Load()
	}
	return out
}

func Handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Snapshot())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, s := range samples {
		w.Write([]byte("fieldsync_" + s.name + " " + s.kind + "\n"))
		w.Write([]byte("fieldsync_" + s.name + " " + strconv.FormatUint(s.v.Load(), 10) + "\n"))
	}
}
