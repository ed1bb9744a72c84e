// Package model contains the shared interfaces and data structures.
//
// # Criteria for adding a type to this package
//
// This package should contain two types:
//
// 1. important interfaces that are shared by several packages
// within the module, with the objective of separating unrelated
// pieces of code and making unit testing easier;
//
// 2. important pieces of data that are shared across different
// packages (e.g., the representation of a ConnectResult).
//
// In general, this package should not contain logic, unless
// this logic is strictly related to data structures.
//
// # Content of this package
//
// - logger.go: generic definition of an apex/log compatible logger;
//
// - netx.go: endpoints, connect results, and the dialer and
// resolver interfaces consumed by the connect code;
//
// - transport.go: the event-driven Transport interface implemented
// by sockets, SOCKS5 tunnels, and TLS sessions.
package model
