// Package chat implements the room and session coordination core of the
// relay service.
//
// It owns connection-to-user bindings, room membership, bounded message
// history, typing relay, and broadcast fan-out under concurrent connect,
// disconnect, and send events. Transport concerns (accepting connections,
// framing, delivery) stay behind the Gateway interface so the coordinator and
// its tests remain independent of any particular wire protocol.
package chat
