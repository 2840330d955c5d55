package push

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeNotification(t *testing.T, body string) []byte {
	t.Helper()
	return []byte("headers... body:" + base64.StdEncoding.EncodeToString([]byte(body)))
}

func TestDecodeStateNotification(t *testing.T) {
	raw := encodeNotification(t, `{"item":"state","data":{"status":"play","volume":50}}`)

	envelope, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, ItemState, envelope.Item)
	require.JSONEq(t, `{"status":"play","volume":50}`, string(envelope.Data))
}

func TestDecodeZonesNotification(t *testing.T) {
	raw := encodeNotification(t, `{"item":"zones","data":{"zones":[]}}`)

	envelope, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, ItemZones, envelope.Item)
}

func TestDecodeLifecycleNotification(t *testing.T) {
	// Connection-lifecycle pushes carry no item at all.
	raw := encodeNotification(t, `{}`)

	envelope, err := Decode(raw)
	require.NoError(t, err)
	require.Empty(t, envelope.Item)
	require.Nil(t, envelope.Data)
}

func TestDecodeMissingMarker(t *testing.T) {
	_, err := Decode([]byte("no marker here"))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Contains(t, decodeErr.Reason, "marker")
}

func TestDecodeMalformedBase64(t *testing.T) {
	_, err := Decode([]byte("body:!!!not-base64!!!"))

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Contains(t, decodeErr.Reason, "base64")
}

func TestDecodeNonJSONBody(t *testing.T) {
	raw := []byte("body:" + base64.StdEncoding.EncodeToString([]byte("plainly not json")))

	_, err := Decode(raw)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Contains(t, decodeErr.Reason, "JSON")
}

func TestDecodeTrailingWhitespace(t *testing.T) {
	raw := []byte("body: " + base64.StdEncoding.EncodeToString([]byte(`{"item":"state"}`)) + "\r\n")

	envelope, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, ItemState, envelope.Item)
}
