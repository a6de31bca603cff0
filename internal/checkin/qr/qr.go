package qr

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/skip2/go-qrcode"
)

var ErrMalformedPayload = errors.New("malformed QR payload")

// Payload is what a member's QR code carries. It names the code and the venue
// it was issued for, nothing else.
type Payload struct {
	Code    string `json:"code"`
	VenueID string `json:"venueId"`
}

func EncodePayload(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return Payload{}, ErrMalformedPayload
	}
	if p.Code == "" || p.VenueID == "" {
		return Payload{}, ErrMalformedPayload
	}
	return p, nil
}

type QRGenerator struct {
	size int
}

func NewQRGenerator(size int) *QRGenerator {
	if size <= 0 {
		size = 256
	}
	return &QRGenerator{size: size}
}

// RenderPNG draws the payload string as a PNG QR image.
func (q *QRGenerator) RenderPNG(payload string) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, q.size)
}
