package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersAreRendered(t *testing.T) {
	before := Read()
	SubmissionRelayed()
	RecordPersisted()
	RecordPersisted()
	SinkFailed()
	after := Read()

	require.Equal(t, before.SubmissionsRelayed+1, after.SubmissionsRelayed)
	require.Equal(t, before.RecordsPersisted+2, after.RecordsPersisted)
	require.Equal(t, before.SinkFailures+1, after.SinkFailures)

	rec := httptest.NewRecorder()
	WritePrometheus(rec)

	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	body := rec.Body.String()
	require.Contains(t, body, "# TYPE formrelay_ingestion_records_persisted_total counter\n")
	for _, name := range []string{
		"formrelay_web_submissions_relayed_total",
		"formrelay_web_relay_failures_total",
		"formrelay_ingestion_datagrams_received_total",
		"formrelay_ingestion_malformed_total",
		"formrelay_ingestion_corrupt_store_total",
		"formrelay_ingestion_store_write_failures_total",
		"formrelay_ingestion_sink_failures_total",
	} {
		require.Contains(t, body, name+" ")
	}
}
