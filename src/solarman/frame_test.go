package solarman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequest(t *testing.T) {
	rtu := []byte{0x01, 0x03, 0x02, 0x4C, 0x00, 0x01, 0xAA, 0xBB}
	frame := EncodeRequest(0x12345678, 1, rtu)

	expected := []byte{
		// start, payload length 15+8, control 0x4510, sequence, logger serial
		0xA5, 0x17, 0x00, 0x10, 0x45, 0x01, 0x00, 0x78, 0x56, 0x34, 0x12,
		// frame type, sensor type, working time, power on time, offset time
		0x02, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		// RTU frame
		0x01, 0x03, 0x02, 0x4C, 0x00, 0x01, 0xAA, 0xBB,
		// checksum, end
		0x3B, 0x15,
	}
	assert.Equal(t, expected, frame)
}

func TestDecodeResponse(t *testing.T) {
	rtu := []byte{0x01, 0x03, 0x02, 0x00, 0x57, 0xF9, 0xBA}
	frame := EncodeResponse(ControlResponse, 7, 0x12345678, rtu)

	resp, err := DecodeResponse(frame)
	require.NoError(t, err)

	assert.Equal(t, ControlResponse, resp.ControlCode)
	assert.Equal(t, uint16(7), resp.SequenceNumber)
	assert.Equal(t, uint32(0x12345678), resp.LoggerSerial)
	assert.Equal(t, byte(0x02), resp.FrameType)
	assert.Equal(t, byte(0x01), resp.Status)
	assert.Equal(t, rtu, resp.RTU)
}

func TestDecodeResponse_Errors(t *testing.T) {
	good := EncodeResponse(ControlResponse, 1, 42, []byte{0x01, 0x03, 0x02, 0x00, 0x01, 0x79, 0x84})

	t.Run("short frame", func(t *testing.T) {
		_, err := DecodeResponse(good[:8])
		assert.ErrorIs(t, err, ErrShortFrame)
	})

	t.Run("truncated payload", func(t *testing.T) {
		truncated := append(append([]byte{}, good[:len(good)-4]...), good[len(good)-2:]...)
		_, err := DecodeResponse(truncated)
		assert.ErrorIs(t, err, ErrShortFrame)
	})

	t.Run("bad checksum", func(t *testing.T) {
		corrupt := append([]byte{}, good...)
		corrupt[len(corrupt)-3] ^= 0xFF
		_, err := DecodeResponse(corrupt)
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("bad end byte", func(t *testing.T) {
		corrupt := append([]byte{}, good...)
		corrupt[len(corrupt)-1] = 0x00
		_, err := DecodeResponse(corrupt)
		assert.ErrorIs(t, err, ErrUnexpectedFrame)
	})

	t.Run("request control code", func(t *testing.T) {
		_, err := DecodeResponse(EncodeRequest(42, 1, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}))
		assert.ErrorIs(t, err, ErrUnexpectedFrame)
	})
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0x00), Checksum(nil))
	assert.Equal(t, byte(0x03), Checksum([]byte{0x01, 0x02}))
	assert.Equal(t, byte(0x01), Checksum([]byte{0xFF, 0x02}))
}
