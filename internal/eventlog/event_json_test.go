package eventlog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stream consumers and webhook subscribers key on these field names; a
// rename here is a breaking wire change.
func TestEventJSONFieldNames(t *testing.T) {
	event := Event{
		ID:        1,
		Type:      TypeBookCreated,
		Payload:   json.RawMessage(`{}`),
		Actor:     "alice",
		CreatedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Contains(t, fields, "id")
	assert.Contains(t, fields, "event_type")
	assert.Contains(t, fields, "payload")
	assert.Contains(t, fields, "actor")
	assert.Contains(t, fields, "created_at")
	assert.Equal(t, "book.created", fields["event_type"])
	assert.NotContains(t, fields, "type")
}

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		name string
		in   int
		want int
	}{
		{"zero gets the default", 0, defaultQueryLimit},
		{"negative gets the default", -5, defaultQueryLimit},
		{"in range passes through", 250, 250},
		{"the maximum passes through", maxQueryLimit, maxQueryLimit},
		{"over the maximum clamps down", maxQueryLimit + 1, maxQueryLimit},
		{"far over the maximum clamps down", 1 << 20, maxQueryLimit},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeLimit(tc.in))
		})
	}
}
