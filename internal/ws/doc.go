// Package ws streams lifecycle events to WebSocket clients.
//
// The Hub subscribes to the notification bus and fans event frames out
// to connected clients through buffered per-client channels. A client
// that stops draining is disconnected so the lifecycle path never
// blocks on a slow consumer.
package ws
