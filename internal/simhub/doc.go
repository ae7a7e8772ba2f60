// Package simhub is an in-memory Context Hub for tests and scenarios.
//
// Hub implements contexthub.Manager. By default every transaction succeeds
// immediately; Script queues Behaviors per transaction kind to inject result
// codes, latency, dropped responses or missing responses. Latency is
// measured on the hub's clock, so a fake clock drives it deterministically.
//
// Transactions are single use: a second WaitForResponse returns
// contexthub.ErrConsumed without blocking.
package simhub
