package fiber

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Flag identifies the purpose of a frame. Exactly one flag is set on any
// given frame.
type Flag uint8

const (
	// FlagSYN requests that a fiber be opened.
	FlagSYN Flag = 1 << iota
	// FlagRST resets (or rejects) a fiber.
	FlagRST
	// FlagACK acknowledges a SYN, or toggles a fiber's send-side flow
	// control state.
	FlagACK
	// FlagDatagram carries a single datagram payload.
	FlagDatagram
	// FlagPush carries a block of stream payload.
	FlagPush
)

// String provides a human-readable representation of a Flag.
func (f Flag) String() string {
	switch f {
	case FlagSYN:
		return "SYN"
	case FlagRST:
		return "RST"
	case FlagACK:
		return "ACK"
	case FlagDatagram:
		return "DATAGRAM"
	case FlagPush:
		return "PUSH"
	default:
		return fmt.Sprintf("Flag(%#02x)", uint8(f))
	}
}

const (
	// protocolVersion is the only version of the framing protocol this
	// package speaks.
	protocolVersion uint8 = 1
	// headerSize is the wire size, in bytes, of a frame header.
	headerSize = 1 + 4 + 4 + 1 + 2
	// DefaultMTU is the default (and maximum permitted) frame payload size.
	DefaultMTU = 60 * 1024
)

// Header is the fixed, little-endian, on-wire frame header.
type Header struct {
	Version     uint8
	ID          ID
	Flags       Flag
	PayloadSize uint16
}

// Frame is a parsed header together with its payload.
type Frame struct {
	Header  Header
	Payload []byte
}

// encode serializes a header to its fixed wire representation.
func (h Header) encode() []byte {
	buffer := make([]byte, headerSize)
	buffer[0] = h.Version
	binary.LittleEndian.PutUint32(buffer[1:5], h.ID.Local)
	binary.LittleEndian.PutUint32(buffer[5:9], h.ID.Remote)
	buffer[9] = byte(h.Flags)
	binary.LittleEndian.PutUint16(buffer[10:12], h.PayloadSize)
	return buffer
}

// decodeHeader parses a header from its fixed wire representation.
func decodeHeader(buffer []byte) (Header, error) {
	if len(buffer) != headerSize {
		return Header{}, errors.New("short header buffer")
	}
	return Header{
		Version: buffer[0],
		ID: ID{
			Local:  binary.LittleEndian.Uint32(buffer[1:5]),
			Remote: binary.LittleEndian.Uint32(buffer[5:9]),
		},
		Flags:       Flag(buffer[9]),
		PayloadSize: binary.LittleEndian.Uint16(buffer[10:12]),
	}, nil
}

// WriteFrame encodes and writes a single frame (header followed by payload)
// to the carrier. The caller is responsible for ensuring that
// len(payload) <= the negotiated MTU.
func WriteFrame(carrier io.Writer, header Header, payload []byte) error {
	header.PayloadSize = uint16(len(payload))
	if _, err := carrier.Write(header.encode()); err != nil {
		return errors.Wrap(err, "unable to write frame header")
	}
	if len(payload) > 0 {
		if _, err := carrier.Write(payload); err != nil {
			return errors.Wrap(err, "unable to write frame payload")
		}
	}
	return nil
}

// ReadFrame reads and decodes a single frame from the carrier, allocating a
// fresh payload buffer. If the carrier reaches a clean EOF exactly at a frame
// boundary, io.EOF is returned unwrapped so that callers can distinguish a
// natural shutdown from a mid-frame failure.
func ReadFrame(carrier io.Reader) (Frame, error) {
	headerBuffer := make([]byte, headerSize)
	if _, err := io.ReadFull(carrier, headerBuffer); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, errors.Wrap(err, "unable to read frame header")
	}
	header, err := decodeHeader(headerBuffer)
	if err != nil {
		return Frame{}, err
	}
	if header.Version != protocolVersion {
		return Frame{}, errors.Errorf("unsupported frame version: %d", header.Version)
	}
	var payload []byte
	if header.PayloadSize > 0 {
		payload = make([]byte, header.PayloadSize)
		if _, err := io.ReadFull(carrier, payload); err != nil {
			return Frame{}, errors.Wrap(err, "unable to read frame payload")
		}
	}
	return Frame{Header: header, Payload: payload}, nil
}
