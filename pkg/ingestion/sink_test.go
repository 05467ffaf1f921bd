package ingestion

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/formrelay/pkg/common/models"
)

func TestEventData(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rec models.Record

		want map[string]interface{}
	}{
		"Fields and timestamp": {
			rec:  models.Record{Timestamp: "2024-03-01 10:00:00.000000", Fields: models.FieldMap{"name": "Bob", "msg": "hi there"}},
			want: map[string]interface{}{
				"timestamp": "2024-03-01 10:00:00.000000",
				"fields":    map[string]interface{}{"name": "Bob", "msg": "hi there"},
			},
		},
		"Empty value is kept": {
			rec:  models.Record{Timestamp: "2024-03-01 10:00:00.000001", Fields: models.FieldMap{"name": ""}},
			want: map[string]interface{}{
				"timestamp": "2024-03-01 10:00:00.000001",
				"fields":    map[string]interface{}{"name": ""},
			},
		},
		"No fields": {
			rec:  models.Record{Timestamp: "2024-03-01 10:00:00.000002"},
			want: map[string]interface{}{
				"timestamp": "2024-03-01 10:00:00.000002",
				"fields":    map[string]interface{}{},
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := eventData(tc.rec)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEventDataDoesNotAliasRecord(t *testing.T) {
	t.Parallel()

	rec := models.Record{Timestamp: "2024-03-01 10:00:00.000000", Fields: models.FieldMap{"a": "1"}}
	got := eventData(rec)
	rec.Fields["a"] = "changed"

	require.Equal(t, "1", got["fields"].(map[string]interface{})["a"], "event data should hold a copy of the fields")
}
