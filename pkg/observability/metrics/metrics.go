package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	submissionsRelayed   atomic.Int64
	relayFailures        atomic.Int64
	datagramsReceived    atomic.Int64
	recordsPersisted     atomic.Int64
	malformedSubmissions atomic.Int64
	corruptStoreRejects  atomic.Int64
	storeWriteFailures   atomic.Int64
	sinkFailures         atomic.Int64
)

func SubmissionRelayed() { submissionsRelayed.Add(1) }
func RelayFailed() { relayFailures.Add(1) }
func DatagramReceived() { datagramsReceived.Add(1) }
func RecordPersisted() { recordsPersisted.Add(1) }
func SubmissionMalformed() { malformedSubmissions.Add(1) }
func StoreCorrupt() { corruptStoreRejects.Add(1) }
func StoreWriteFailed() { storeWriteFailures.Add(1) }
func SinkFailed() { sinkFailures.Add(1) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	SubmissionsRelayed   int64
	RelayFailures        int64
	DatagramsReceived    int64
	RecordsPersisted     int64
	MalformedSubmissions int64
	CorruptStoreRejects  int64
	StoreWriteFailures   int64
	SinkFailures         int64
}

func Read() Snapshot {
	return Snapshot{
		SubmissionsRelayed:   submissionsRelayed.Load(),
		RelayFailures:        relayFailures.Load(),
		DatagramsReceived:    datagramsReceived.Load(),
		RecordsPersisted:     recordsPersisted.Load(),
		MalformedSubmissions: malformedSubmissions.Load(),
		CorruptStoreRejects:  corruptStoreRejects.Load(),
		StoreWriteFailures:   storeWriteFailures.Load(),
		SinkFailures:         sinkFailures.Load(),
	}
}

func WritePrometheus(w http.ResponseWriter) {
	s := Read()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	counter(w, "formrelay_web_submissions_relayed_total", "Form submissions forwarded to the ingestion socket.", s.SubmissionsRelayed)
	counter(w, "formrelay_web_relay_failures_total", "Form submissions that could not be sent to the ingestion socket.", s.RelayFailures)
	counter(w, "formrelay_ingestion_datagrams_received_total", "Datagrams read by the ingestion service.", s.DatagramsReceived)
	counter(w, "formrelay_ingestion_records_persisted_total", "Records appended to the record store.", s.RecordsPersisted)
	counter(w, "formrelay_ingestion_malformed_total", "Datagrams discarded because the payload was malformed.", s.MalformedSubmissions)
	counter(w, "formrelay_ingestion_corrupt_store_total", "Records discarded because the record store could not be parsed.", s.CorruptStoreRejects)
	counter(w, "formrelay_ingestion_store_write_failures_total", "Records discarded because the record store could not be read or written.", s.StoreWriteFailures)
	counter(w, "formrelay_ingestion_sink_failures_total", "Failed writes to optional record sinks.", s.SinkFailures)
}

func counter(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
