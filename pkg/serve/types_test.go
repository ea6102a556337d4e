package serve

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_ScanUnmarshal(t *testing.T) {
	input := `{"type":"scan","payload":{"content":"GET /etc/passwd","source":"flow-7"}}`

	var req Request
	err := json.Unmarshal([]byte(input), &req)
	require.NoError(t, err)

	assert.Equal(t, TypeScan, req.Type)

	var payload ScanPayload
	err = json.Unmarshal(req.Payload, &payload)
	require.NoError(t, err)

	assert.Equal(t, "GET /etc/passwd", payload.Content)
	assert.Equal(t, "flow-7", payload.Source)
}

func TestRequest_ScanBatchUnmarshal(t *testing.T) {
	input := `{"type":"scan_batch","payload":{"items":[
		{"source":"capture.pcap#1","content":"USER root"},
		{"source":"capture.pcap#2","content":"PASS x","metadata":{"port":"21"}}
	]}}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(input), &req))
	assert.Equal(t, TypeScanBatch, req.Type)

	var payload ScanBatchPayload
	require.NoError(t, json.Unmarshal(req.Payload, &payload))
	require.Len(t, payload.Items, 2)
	assert.Equal(t, "capture.pcap#2", payload.Items[1].Source)
	assert.Equal(t, "21", payload.Items[1].Metadata["port"])
}

func TestRequest_WithoutPayload(t *testing.T) {
	for _, typ := range []string{TypeStats, TypeClose} {
		t.Run(typ, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(`{"type":"`+typ+`"}`), &req))
			assert.Equal(t, typ, req.Type)
			assert.Empty(t, req.Payload)
		})
	}
}

func TestResponse_Marshal(t *testing.T) {
	resp := Response{
		Success: true,
		Type:    TypeReady,
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"success":true`)
	assert.Contains(t, string(data), `"type":"ready"`)
	assert.NotContains(t, string(data), `"error"`)
	assert.NotContains(t, string(data), `"data"`)
}

func TestResponse_ReadyData(t *testing.T) {
	data, err := json.Marshal(ReadyData{Version: Version, Engine: "dfc", Rules: 12})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, Version, fields["version"])
	assert.Equal(t, "dfc", fields["engine"])
	assert.EqualValues(t, 12, fields["rules"])
}

func TestResponse_DecodeError(t *testing.T) {
	data, err := json.Marshal(Response{Type: TypeDecode, Error: "invalid character 'x'"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"success":false,"type":"decode","error":"invalid character 'x'"}`, string(data))
}
