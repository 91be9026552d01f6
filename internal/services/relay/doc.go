// Package relay groups the real-time chat relay service.
//
// The app subpackage owns the HTTP/WebSocket boundary; room and session
// state lives in internal/chat so the transport stays replaceable.
package relay
