package sshproxy

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePtyReq(term string, width, height uint32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.BigEndian, uint32(len(term)))
	buf.WriteString(term)
	_ = binary.Write(buf, binary.BigEndian, width)
	_ = binary.Write(buf, binary.BigEndian, height)
	return buf.Bytes()
}

func TestInterpretPtyReq_ParsesTermAndDimensions(t *testing.T) {
	payload := encodePtyReq("xterm-256color", 120, 40)

	got, err := InterpretPtyReq(payload)

	require.NoError(t, err)
	assert.Equal(t, "xterm-256color", got.Term)
	assert.Equal(t, uint32(120), got.Width)
	assert.Equal(t, uint32(40), got.Height)
}

func TestInterpretPtyReq_TruncatedPayloadErrors(t *testing.T) {
	_, err := InterpretPtyReq([]byte{0, 0, 0, 5, 'a'})
	assert.Error(t, err)
}

func TestPtyReqData_String_HandlesNil(t *testing.T) {
	var prd *PtyReqData
	assert.Equal(t, "<nil>", prd.String())
}

func TestInterpretWindowChange_RoundTripsThroughSerialize(t *testing.T) {
	wc := &WindowChange{Width: 80, Height: 24}

	payload := wc.Serialize()
	got, err := InterpretWindowChange(payload[:8])

	require.NoError(t, err)
	assert.Equal(t, wc.Width, got.Width)
	assert.Equal(t, wc.Height, got.Height)
}

func TestWindowChange_Serialize_IncludesPixelDimensions(t *testing.T) {
	wc := &WindowChange{Width: 10, Height: 5}

	payload := wc.Serialize()

	require.Len(t, payload, 16)
	var w, h, pw, ph uint32
	r := bytes.NewReader(payload)
	_ = binary.Read(r, binary.BigEndian, &w)
	_ = binary.Read(r, binary.BigEndian, &h)
	_ = binary.Read(r, binary.BigEndian, &pw)
	_ = binary.Read(r, binary.BigEndian, &ph)
	assert.Equal(t, uint32(80), pw)
	assert.Equal(t, uint32(40), ph)
}
