// Package solarmantest provides an in-process logging stick for tests
package solarmantest

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"

	"github.com/sigurn/crc16"

	"github.com/ryansname/deyectl/src/solarman"
)

const (
	rtuOffset        = 11 + 15 // header + request payload
	readHoldingRegs  = 0x03
	exceptionIllegal = 0x02
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Logger answers read holding register requests from a register map.
// Registers missing from the map read as zero.
type Logger struct {
	listener net.Listener

	mu        sync.Mutex
	registers map[uint16]uint16
	reads     int
}

// NewLogger starts a logger on a loopback port. It stops with the test.
func NewLogger(t testing.TB, registers map[uint16]uint16) *Logger {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("solarmantest: listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	if registers == nil {
		registers = make(map[uint16]uint16)
	}
	l := &Logger{listener: listener, registers: registers}
	go l.accept()
	return l
}

// Addr is the host:port to dial
func (l *Logger) Addr() string {
	return l.listener.Addr().String()
}

func (l *Logger) IP() string {
	return l.listener.Addr().(*net.TCPAddr).IP.String()
}

func (l *Logger) Port() int {
	return l.listener.Addr().(*net.TCPAddr).Port
}

// Set changes a register value
func (l *Logger) Set(addr, value uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registers[addr] = value
}

// Reads counts the requests answered so far
func (l *Logger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

func (l *Logger) accept() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			return
		}
		go l.serve(conn)
	}
}

func (l *Logger) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	for {
		frame, err := solarman.ReadFrame(conn)
		if err != nil || len(frame) < rtuOffset+8 {
			return
		}
		seq := binary.LittleEndian.Uint16(frame[5:7])
		serial := binary.LittleEndian.Uint32(frame[7:11])
		rtu := frame[rtuOffset : len(frame)-2]

		reply := l.answer(rtu)
		if _, err := conn.Write(solarman.EncodeResponse(solarman.ControlResponse, seq, serial, reply)); err != nil {
			return
		}
	}
}

func (l *Logger) answer(rtu []byte) []byte {
	slave, function := rtu[0], rtu[1]
	if function != readHoldingRegs {
		return withCRC([]byte{slave, function | 0x80, exceptionIllegal})
	}

	addr := binary.BigEndian.Uint16(rtu[2:4])
	qty := binary.BigEndian.Uint16(rtu[4:6])

	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++

	reply := []byte{slave, function, byte(qty * 2)}
	for i := range qty {
		reply = binary.BigEndian.AppendUint16(reply, l.registers[addr+i])
	}
	return withCRC(reply)
}

func withCRC(rtu []byte) []byte {
	crc := crc16.Checksum(rtu, crcTable)
	return append(rtu, byte(crc), byte(crc>>8))
}
