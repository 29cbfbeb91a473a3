// Package solarman speaks the Solarman V5 protocol used by the Wi-Fi
// logging sticks on Deye and Sunsynk inverters. Each V5 frame carries a
// Modbus RTU frame for the inverter behind the logger.
package solarman

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame markers and control codes
const (
	StartByte byte = 0xA5
	EndByte   byte = 0x15

	ControlRequest  uint16 = 0x4510
	ControlResponse uint16 = 0x1510

	headerLen          = 11 // start, length, control, sequence, serial
	requestPayloadLen  = 15 // frame type, sensor type, three u32 timers
	responsePayloadLen = 14 // frame type, status, three u32 timers
	trailerLen         = 2  // checksum, end
)

var (
	ErrShortFrame      = errors.New("solarman: frame too short")
	ErrChecksum        = errors.New("solarman: checksum mismatch")
	ErrUnexpectedFrame = errors.New("solarman: unexpected frame")
)

// Response is a decoded V5 response frame
type Response struct {
	ControlCode    uint16
	SequenceNumber uint16
	LoggerSerial   uint32
	FrameType      byte
	Status         byte
	RTU            []byte // Modbus RTU frame including CRC
}

// EncodeRequest wraps an RTU frame in a V5 request frame
func EncodeRequest(serial uint32, seq uint16, rtu []byte) []byte {
	payloadLen := requestPayloadLen + len(rtu)
	frame := make([]byte, headerLen+payloadLen+trailerLen)

	frame[0] = StartByte
	binary.LittleEndian.PutUint16(frame[1:3], uint16(payloadLen))
	binary.LittleEndian.PutUint16(frame[3:5], ControlRequest)
	binary.LittleEndian.PutUint16(frame[5:7], seq)
	binary.LittleEndian.PutUint32(frame[7:11], serial)

	// Frame type 0x02 (solar inverter); sensor type and timers stay zero
	frame[headerLen] = 0x02
	copy(frame[headerLen+requestPayloadLen:], rtu)

	frame[len(frame)-2] = Checksum(frame[1 : len(frame)-2])
	frame[len(frame)-1] = EndByte
	return frame
}

// EncodeResponse builds the frame a logger sends back for a request.
// Loggers use other control codes for heartbeats and data pushes.
func EncodeResponse(control, seq uint16, serial uint32, rtu []byte) []byte {
	payloadLen := responsePayloadLen + len(rtu)
	frame := make([]byte, headerLen+payloadLen+trailerLen)

	frame[0] = StartByte
	binary.LittleEndian.PutUint16(frame[1:3], uint16(payloadLen))
	binary.LittleEndian.PutUint16(frame[3:5], control)
	binary.LittleEndian.PutUint16(frame[5:7], seq)
	binary.LittleEndian.PutUint32(frame[7:11], serial)
	frame[headerLen] = 0x02
	frame[headerLen+1] = 0x01
	copy(frame[headerLen+responsePayloadLen:], rtu)

	frame[len(frame)-2] = Checksum(frame[1 : len(frame)-2])
	frame[len(frame)-1] = EndByte
	return frame
}

// DecodeResponse validates a complete V5 frame and extracts the RTU frame
func DecodeResponse(frame []byte) (Response, error) {
	if len(frame) < headerLen+trailerLen {
		return Response{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	if frame[0] != StartByte || frame[len(frame)-1] != EndByte {
		return Response{}, fmt.Errorf("%w: bad start/end bytes 0x%02X/0x%02X", ErrUnexpectedFrame, frame[0], frame[len(frame)-1])
	}

	payloadLen := int(binary.LittleEndian.Uint16(frame[1:3]))
	if payloadLen != len(frame)-headerLen-trailerLen {
		return Response{}, fmt.Errorf("%w: length field %d, frame carries %d", ErrShortFrame, payloadLen, len(frame)-headerLen-trailerLen)
	}

	if sum := Checksum(frame[1 : len(frame)-2]); sum != frame[len(frame)-2] {
		return Response{}, fmt.Errorf("%w: calculated 0x%02X, provided 0x%02X", ErrChecksum, sum, frame[len(frame)-2])
	}

	resp := Response{
		ControlCode:    binary.LittleEndian.Uint16(frame[3:5]),
		SequenceNumber: binary.LittleEndian.Uint16(frame[5:7]),
		LoggerSerial:   binary.LittleEndian.Uint32(frame[7:11]),
	}
	if resp.ControlCode != ControlResponse {
		return resp, fmt.Errorf("%w: control code 0x%04X", ErrUnexpectedFrame, resp.ControlCode)
	}
	if payloadLen < responsePayloadLen {
		return resp, fmt.Errorf("%w: payload %d bytes", ErrShortFrame, payloadLen)
	}

	resp.FrameType = frame[headerLen]
	resp.Status = frame[headerLen+1]
	resp.RTU = frame[headerLen+responsePayloadLen : len(frame)-trailerLen]
	return resp, nil
}

// Checksum is the low byte of the sum of data
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// ReadFrame reads one complete V5 frame using its length field
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if header[0] != StartByte {
		return nil, fmt.Errorf("%w: start byte 0x%02X", ErrUnexpectedFrame, header[0])
	}

	payloadLen := int(binary.LittleEndian.Uint16(header[1:3]))
	frame := make([]byte, headerLen+payloadLen+trailerLen)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[headerLen:]); err != nil {
		return nil, err
	}
	return frame, nil
}
