package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	raw, err := EncodePayload(Payload{Code: "AB12CD", VenueID: "V1"})
	require.NoError(t, err)
	assert.Equal(t, `{"code":"AB12CD","venueId":"V1"}`, raw)

	decoded, err := DecodePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, Payload{Code: "AB12CD", VenueID: "V1"}, decoded)
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "AB12CD", `{"code":"AB12CD"}`, `{"venueId":"V1"}`, `[1,2]`} {
		_, err := DecodePayload(raw)
		assert.ErrorIs(t, err, ErrMalformedPayload, raw)
	}
}

func TestRenderPNG(t *testing.T) {
	gen := NewQRGenerator(0)

	img, err := gen.RenderPNG(`{"code":"AB12CD","venueId":"V1"}`)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 256, decoded.Bounds().Dx())
}
