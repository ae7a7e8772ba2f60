// Package contexthub describes the Context Hub capabilities the test
// utilities depend on.
//
// A Manager submits load, unload and query requests against a hub and hands
// back a Transaction. The transaction completes out-of-band; callers block on
// WaitForResponse with a bounded timeout and read the result code (and, for
// queries, the list of loaded nanoapps) from the Response.
//
// Nothing in this package talks to hardware. Real managers live outside the
// module; internal/simhub provides a simulated one for tests and scenarios.
package contexthub
