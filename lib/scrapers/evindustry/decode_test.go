package evindustry

import (
	"bytes"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

const listingsPayload = `{"props":{"chargepoints":[
	{"id":1,"evcs_establishment_name":"SM North EDSA"},
	{"id":2,"evcs_establishment_name":"Ayala Malls Manila Bay"}
]}}`

func gzipBytes(t *testing.T, plain string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(plain))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func brotliBytes(t *testing.T, plain string) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write([]byte(plain))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodePlain(t *testing.T) {
	doc, err := Decode([]byte(listingsPayload), "")
	require.NoError(t, err)

	points, ok := Chargepoints(doc)
	require.True(t, ok)
	require.Len(t, points, 2)
	require.Equal(t, "SM North EDSA", points[0]["evcs_establishment_name"])
}

func TestDecodeGzip(t *testing.T) {
	doc, err := Decode(gzipBytes(t, listingsPayload), "gzip")
	require.NoError(t, err)

	points, ok := Chargepoints(doc)
	require.True(t, ok)
	require.Len(t, points, 2)
}

func TestDecodeBrotli(t *testing.T) {
	doc, err := Decode(brotliBytes(t, listingsPayload), "br")
	require.NoError(t, err)

	points, ok := Chargepoints(doc)
	require.True(t, ok)
	require.Len(t, points, 2)
}

func TestDecodeWrongEncodingHint(t *testing.T) {
	// a header claiming gzip over a body that isn't still decodes
	doc, err := Decode(brotliBytes(t, listingsPayload), "gzip")
	require.NoError(t, err)

	points, ok := Chargepoints(doc)
	require.True(t, ok)
	require.Len(t, points, 2)

	doc, err = Decode([]byte(listingsPayload), "br")
	require.NoError(t, err)
	_, ok = Chargepoints(doc)
	require.True(t, ok)
}

func TestDecodeTopLevelChargepoints(t *testing.T) {
	doc, err := Decode([]byte(`{"chargepoints":[{"id":7}]}`), "")
	require.NoError(t, err)

	points, ok := Chargepoints(doc)
	require.True(t, ok)
	require.Len(t, points, 1)
}

func TestDecodeNoChargepoints(t *testing.T) {
	_, err := Decode([]byte(`{"props":{"user":null}}`), "")
	require.ErrorIs(t, err, ErrNoChargepoints)

	// a JSON array is well formed but not a listings object
	_, err = Decode([]byte(`[1,2,3]`), "")
	require.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("\x00\x01<html>not json"), "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoChargepoints)
}

func TestChargepointsSkipsNonObjects(t *testing.T) {
	doc := map[string]any{
		"chargepoints": []any{
			map[string]any{"id": float64(1)},
			"stray string",
			map[string]any{"id": float64(2)},
		},
	}
	points, ok := Chargepoints(doc)
	require.True(t, ok)
	require.Len(t, points, 2)
}
