package socketio

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Engine.IO v4 packet types
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineUpgrade byte = '5'
	engineNoop    byte = '6'
)

// Socket.IO v5 packet types, carried by engine messages
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketAck          byte = '3'
	socketConnectError byte = '4'
	socketBinaryEvent  byte = '5'
	socketBinaryAck    byte = '6'
)

const defaultNamespace = "/"

// separates the packets of a long-polling payload
const recordSeparator byte = 0x1e

var (
	errEmptyPacket   = errors.New("empty packet")
	errBadPacketType = errors.New("unknown packet type")
	errBadEvent      = errors.New("event packet is not a [name, ...args] array")
)

type packet struct {
	engineType byte
	socketType byte   // set for engine messages only
	namespace  string // set for engine messages only
	data       []byte // engine payload, or socket payload for engine messages
}

// decodePacket parses a text frame: <engine type>[<socket type>[<namespace>,][<ack id>]<json>]
func decodePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, errEmptyPacket
	}
	p := packet{engineType: frame[0], data: frame[1:]}
	switch p.engineType {
	case engineOpen, engineClose, enginePing, enginePong, engineUpgrade, engineNoop:
		return p, nil
	case engineMessage:
	default:
		return packet{}, errors.Wrap(errBadPacketType, strconv.Quote(string(frame[:1])))
	}

	rest := p.data
	if len(rest) == 0 {
		return packet{}, errEmptyPacket
	}
	p.socketType, rest = rest[0], rest[1:]
	if p.socketType < socketConnect || p.socketType > socketBinaryAck {
		return packet{}, errors.Wrap(errBadPacketType, strconv.Quote(string(p.socketType)))
	}

	// binary packets carry an attachment count first
	if p.socketType == socketBinaryEvent || p.socketType == socketBinaryAck {
		if i := bytes.IndexByte(rest, '-'); i >= 0 {
			rest = rest[i+1:]
		}
	}

	p.namespace = defaultNamespace
	if len(rest) > 0 && rest[0] == '/' {
		i := bytes.IndexByte(rest, ',')
		if i < 0 {
			p.namespace, rest = string(rest), nil
		} else {
			p.namespace, rest = string(rest[:i]), rest[i+1:]
		}
	}

	// ack ids are accepted and ignored: events are fire-and-forget
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	p.data = rest[i:]
	return p, nil
}

// decodeEvent splits an event payload into its name and first argument.
// Further arguments are ignored; a missing argument yields a nil payload.
func decodeEvent(data []byte) (string, []byte, error) {
	if !gjson.ValidBytes(data) {
		return "", nil, errBadEvent
	}
	args := gjson.ParseBytes(data)
	if !args.IsArray() {
		return "", nil, errBadEvent
	}
	arr := args.Array()
	if len(arr) == 0 || arr[0].Type != gjson.String || arr[0].String() == "" {
		return "", nil, errBadEvent
	}
	if len(arr) < 2 {
		return arr[0].String(), nil, nil
	}
	return arr[0].String(), []byte(arr[1].Raw), nil
}

// encodeEvent returns the frame of an event for the default namespace.
// A nil payload sends the event without arguments.
func encodeEvent(event string, payload interface{}) ([]byte, error) {
	args := []interface{}{event}
	if payload != nil {
		args = append(args, payload)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrap(err, "encoding "+event)
	}
	return append([]byte{engineMessage, socketEvent}, data...), nil
}

type (
	openPayload struct {
		SID          string   `json:"sid"`
		Upgrades     []string `json:"upgrades"`
		PingInterval int64    `json:"pingInterval"`
		PingTimeout  int64    `json:"pingTimeout"`
		MaxPayload   int64    `json:"maxPayload"`
	}

	connectPayload struct {
		SID string `json:"sid"`
	}

	errorPayload struct {
		Message string `json:"message"`
	}
)

// encodePayload joins frames into one long-polling response body.
func encodePayload(frames [][]byte) []byte {
	return bytes.Join(frames, []byte{recordSeparator})
}

// decodePayload splits a long-polling request body into frames.
func decodePayload(body []byte) [][]byte {
	return bytes.Split(body, []byte{recordSeparator})
}

func encodeOpen(p openPayload) []byte {
	data, _ := json.Marshal(p)
	return append([]byte{engineOpen}, data...)
}

func encodeConnect(connID string) []byte {
	data, _ := json.Marshal(connectPayload{SID: connID})
	return append([]byte{engineMessage, socketConnect}, data...)
}

// encodeConnectError refuses a namespace connection.
func encodeConnectError(namespace, msg string) []byte {
	data, _ := json.Marshal(errorPayload{Message: msg})
	frame := []byte{engineMessage, socketConnectError}
	if namespace != defaultNamespace {
		frame = append(frame, namespace...)
		frame = append(frame, ',')
	}
	return append(frame, data...)
}
