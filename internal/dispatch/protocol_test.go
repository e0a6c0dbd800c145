package dispatch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := Request{Op: OpTranscribe, ID: 42, PCMBase64: "AQID", SampleRate: 16000}

	require.NoError(t, WriteFrame(&buf, req))

	var got Request
	require.NoError(t, ReadFrame(&buf, &got))
	require.Equal(t, req, got)
}

func TestFrameRoundTrip_Response(t *testing.T) {
	var buf bytes.Buffer
	resp := Response{ID: 7, OK: true, Text: "hello world", Confidence: 0.92}

	require.NoError(t, WriteFrame(&buf, resp))

	var got Response
	require.NoError(t, ReadFrame(&buf, &got))
	require.Equal(t, resp, got)
}
