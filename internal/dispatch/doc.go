// Package dispatch sends commands to the worker without blocking the caller.
//
// Each Dispatch call runs its transport round-trip on its own goroutine and
// reports exactly one Result through the supplied callback. Dispatches are
// neither serialized nor de-duplicated: two commands to the same bot may
// complete in either order.
//
// Routing:
//   - local mode: results go to the transient status line (RouteStatus)
//   - remote mode: results are appended to the log (RouteLog)
//
// Every in-flight dispatch is registered with a cancel func so the UI can
// abandon outstanding requests on quit (CancelAll) before stopping the worker.
package dispatch
