package player

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Engine.IO v4 packet types.
const (
	EngineOpen    byte = '0'
	EngineClose   byte = '1'
	EnginePing    byte = '2'
	EnginePong    byte = '3'
	EngineMessage byte = '4'
	EngineUpgrade byte = '5'
	EngineNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	SocketConnect      byte = '0'
	SocketDisconnect   byte = '1'
	SocketEvent        byte = '2'
	SocketAck          byte = '3'
	SocketConnectError byte = '4'
	SocketBinaryEvent  byte = '5'
	SocketBinaryAck    byte = '6'
)

// DefaultNamespace is the only namespace served.
const DefaultNamespace = "/"

var (
	ErrEmptyPacket       = errors.New("empty packet")
	ErrBinaryUnsupported = errors.New("binary packets are not supported")
	ErrMalformedEvent    = errors.New("malformed event packet")
)

// Packet is one decoded inbound frame.
type Packet struct {
	Engine    byte
	Socket    byte // set only when Engine == EngineMessage
	Namespace string
	AckID     int64 // -1 when absent
	Event     string
	Payload   json.RawMessage // first event argument, or CONNECT auth data
}

// DecodePacket parses an Engine.IO frame and, for messages, the Socket.IO
// packet inside it.
func DecodePacket(raw []byte) (Packet, error) {
	if len(raw) == 0 {
		return Packet{}, ErrEmptyPacket
	}
	p := Packet{Engine: raw[0], Namespace: DefaultNamespace, AckID: -1}
	if p.Engine != EngineMessage {
		return p, nil
	}
	body := raw[1:]
	if len(body) == 0 {
		return p, ErrEmptyPacket
	}
	p.Socket = body[0]
	rest := body[1:]

	switch p.Socket {
	case SocketBinaryEvent, SocketBinaryAck:
		return p, ErrBinaryUnsupported
	case SocketConnect, SocketDisconnect, SocketEvent, SocketAck:
	default:
		return p, fmt.Errorf("unknown socket packet type %q", p.Socket)
	}

	if len(rest) > 0 && rest[0] == '/' {
		if i := bytes.IndexByte(rest, ','); i >= 0 {
			p.Namespace = string(rest[:i])
			rest = rest[i+1:]
		} else {
			p.Namespace = string(rest)
			rest = nil
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.ParseInt(string(rest[:digits]), 10, 64)
		if err != nil {
			return p, fmt.Errorf("ack id: %w", err)
		}
		p.AckID = id
		rest = rest[digits:]
	}

	switch p.Socket {
	case SocketConnect:
		if len(rest) > 0 {
			p.Payload = json.RawMessage(rest)
		}
	case SocketEvent:
		var args []json.RawMessage
		if err := json.Unmarshal(rest, &args); err != nil || len(args) == 0 {
			return p, ErrMalformedEvent
		}
		if err := json.Unmarshal(args[0], &p.Event); err != nil {
			return p, ErrMalformedEvent
		}
		if len(args) > 1 {
			p.Payload = args[1]
		}
	}
	return p, nil
}

// EncodeEvent builds a Socket.IO EVENT frame for the default namespace.
func EncodeEvent(event string, data any) ([]byte, error) {
	args, err := json.Marshal([]any{event, data})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(args)+2)
	out = append(out, EngineMessage, SocketEvent)
	return append(out, args...), nil
}

// OpenPayload is the Engine.IO handshake sent right after the upgrade.
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}

// EncodeOpen builds the Engine.IO OPEN frame.
func EncodeOpen(sid string) []byte {
	b, _ := json.Marshal(OpenPayload{
		SID:          sid,
		Upgrades:     []string{},
		PingInterval: PingInterval.Milliseconds(),
		PingTimeout:  PingTimeout.Milliseconds(),
		MaxPayload:   MaxPayload,
	})
	return append([]byte{EngineOpen}, b...)
}

// EncodeConnect acknowledges a Socket.IO CONNECT on the default namespace.
func EncodeConnect(sid string) []byte {
	b, _ := json.Marshal(map[string]string{"sid": sid})
	return append([]byte{EngineMessage, SocketConnect}, b...)
}

// EncodeConnectError rejects a CONNECT for namespace nsp.
func EncodeConnectError(nsp, message string) []byte {
	b, _ := json.Marshal(map[string]string{"message": message})
	out := []byte{EngineMessage, SocketConnectError}
	if nsp != DefaultNamespace {
		out = append(out, nsp...)
		out = append(out, ',')
	}
	return append(out, b...)
}

var (
	pingFrame       = []byte{EnginePing}
	pongFrame       = []byte{EnginePong}
	disconnectFrame = []byte{EngineMessage, SocketDisconnect}
)

// PongFrame answers a client-initiated ping.
func PongFrame() []byte { return pongFrame }

// PingFrame is the server heartbeat.
func PingFrame() []byte { return pingFrame }

// DisconnectFrame is the Socket.IO DISCONNECT for the default namespace.
func DisconnectFrame() []byte { return disconnectFrame }

// CloseFrame is the Engine.IO CLOSE packet.
func CloseFrame() []byte { return []byte{EngineClose} }

// NoopFrame answers a long poll that timed out with nothing to deliver.
func NoopFrame() []byte { return []byte{EngineNoop} }

// RecordSeparator joins frames in one HTTP long-polling payload.
const RecordSeparator byte = 0x1e
