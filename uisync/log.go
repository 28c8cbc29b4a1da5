package uisync

// Logging convention in the `uisync` package:
// Info:
//     essential events for abnormal behavior. This level should be silent on normal operation,
//     with the exception of one time (infrequent) initialization data that is useful for monitoring
//     this includes:
//     - offline transitions and reconnect outcomes
//     - polling failures and session termination
//     - fatal application errors from the server
// V(1):
//     request lifecycle events with request kind and sequence number tags
//     that can be used to filter
// V(2):
//     frequent events - e.g. enqueue, coalesce, poll cycles, event dispatch -
//     useful for trace debugging only
