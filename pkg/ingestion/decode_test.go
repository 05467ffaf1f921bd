package ingestion_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/formrelay/pkg/common/models"
	"github.com/synaptica-ai/formrelay/pkg/ingestion"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		payload string

		want      models.FieldMap
		wantError bool
	}{
		"Single pair":            {payload: "name=Bob", want: models.FieldMap{"name": "Bob"}},
		"Plus becomes space":     {payload: "name=Bob&msg=hi+there", want: models.FieldMap{"name": "Bob", "msg": "hi there"}},
		"Percent escapes":        {payload: "username=alice&message=hello%2C%20world%21", want: models.FieldMap{"username": "alice", "message": "hello, world!"}},
		"UTF-8 escapes":          {payload: "msg=%D0%BF%D1%80%D0%B8%D0%B2%D1%96%D1%82", want: models.FieldMap{"msg": "привіт"}},
		"Empty value":            {payload: "name=&msg=x", want: models.FieldMap{"name": "", "msg": "x"}},
		"Repeated key last":      {payload: "a=1&a=2", want: models.FieldMap{"a": "2"}},
		"Order independent":      {payload: "b=2&a=1", want: models.FieldMap{"a": "1", "b": "2"}},
		"Invalid decoded seq":    {payload: "msg=%FF", want: models.FieldMap{"msg": "\uFFFD"}},
		"Bad escape is literal":  {payload: "a=%zz", want: models.FieldMap{"a": "%zz"}},
		"Trailing percent":       {payload: "discount=100%", want: models.FieldMap{"discount": "100%"}},
		"Percent before plus":    {payload: "msg=50%+off", want: models.FieldMap{"msg": "50% off"}},
		"Short escape at end":    {payload: "a=%4", want: models.FieldMap{"a": "%4"}},
		"Escaped percent":        {payload: "a=100%25", want: models.FieldMap{"a": "100%"}},
		"Escape then bad escape": {payload: "a=%41%g1", want: models.FieldMap{"a": "A%g1"}},

		"Empty payload":             {payload: "", wantError: true},
		"Element without equals":    {payload: "name=Bob&garbage", wantError: true},
		"Element with two equals":   {payload: "a=b=c", wantError: true},
		"Escaped equals in value":   {payload: "eq=1%3D1", wantError: true},
		"Escaped ampersand in pair": {payload: "a=x%26y", wantError: true},
		"Trailing ampersand":        {payload: "a=1&", wantError: true},
		"Invalid raw UTF-8":         {payload: "a=\xff", wantError: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := ingestion.Decode([]byte(tc.payload))
			if tc.wantError {
				require.Error(t, err)
				require.True(t, ingestion.IsMalformed(err), "error should be a malformed submission: %v", err)
				require.ErrorIs(t, err, ingestion.ErrMalformedSubmission)
				require.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
