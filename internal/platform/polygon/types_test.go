package polygon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEventBatchAcceptsArray(t *testing.T) {
	events, err := parseEventBatch([]byte(`[{"ev":"status"},{"ev":"XAS","s":1}]`))
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestParseEventBatchAcceptsBareObject(t *testing.T) {
	events, err := parseEventBatch([]byte(`  {"ev":"status","status":"connected"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)

	var head envelope
	require.NoError(t, json.Unmarshal(events[0], &head))
	require.Equal(t, "status", head.Ev)
}

func TestSecondAggEventDecodesStartMs(t *testing.T) {
	var agg secondAggEvent
	require.NoError(t, json.Unmarshal([]byte(`{"ev":"XAS","pair":"BTC-USD","o":1,"h":2,"l":0.5,"c":1.5,"v":10,"s":1000,"e":2000}`), &agg))
	require.Equal(t, int64(1000), agg.StartMs)
	require.Equal(t, int64(2000), agg.EndMs)
}
