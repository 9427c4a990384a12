// Package core holds the explorer's session logic, independent of any
// transport. Web handlers and tests drive it the same way.
//
// # Architecture
//
//   - Service: owns every live [Session], expires idle ones and shares a
//     [LoadLimiter] between them.
//   - Session: one dataset plus its view parameters and query history.
//     Every operation returns a fresh [View] derived from that state.
//   - History: answered queries, newest first.
//
// # Session Lifecycle
//
// A session starts empty. [Session.Load] or [Session.LoadSample] moves it to
// loading and then to ready, or back to empty with the failure recorded in
// [View.Error]. Reset returns it to empty from any state.
//
// Loads and queries run outside the session lock. Each carries a generation
// number taken when it starts; a result is discarded with [ErrSuperseded]
// if a newer load, query or reset began in the meantime, so the last request
// always wins.
//
// # Progress
//
// [Session.Subscribe] streams [Progress] updates while a dataset loads.
// Slow subscribers skip intermediate updates but always receive the one
// that ends the load.
//
// # Error Handling
//
// Errors are mapped to user-facing messages using [MapError]. Each category
// has a code for support reference:
//
//   - FMT001-FMT002: File content or extension problems
//   - READ001-READ002: The upload could not be read or was too large
//   - SES001-SES002, QRY001-QRY002, VIEW001-VIEW002: Session state errors
//   - REQ001-REQ003, FILE004, RATE001, UPL002: Request level problems
package core
