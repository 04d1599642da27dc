// Package transport moves handshake payloads between two devices.
//
// A Channel is deliberately dumb: it carries opaque bytes, one payload per
// Send, and knows nothing about offers or acks. Pipe connects two
// in-process endpoints; Text frames payloads as base64 lines so a terminal
// can stand in for an optical code or a tap.
package transport
