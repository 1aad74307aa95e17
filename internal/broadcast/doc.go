// Package broadcast delivers channel messages to WebSocket subscribers.
//
// A Manager owns one language's subscriber set and a bounded FIFO queue (512 messages). Producers block when
// the queue is full. The delivery loop wakes on enqueue, takes one message, marshals it once and hands the same
// bytes to every open Connection. Per-connection write goroutines handle slow clients; a failed or slow
// connection closes itself and leaves the set through its disconnect callback.
package broadcast
