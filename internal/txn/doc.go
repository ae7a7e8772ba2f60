// Package txn turns an asynchronous hub transaction into a synchronous,
// classified Outcome.
//
// Wait blocks the calling goroutine until the transaction responds, the
// timeout budget elapses or the caller's context is done, whichever comes
// first. The bound is enforced by the waiter's own timer, so a handle that
// ignores its timeout cannot stall the caller.
//
// Every completion is classified into exactly one Reason:
//
//   - ReasonNone: the hub answered with contexthub.ResultSuccess
//   - ReasonTransactionFailed: any other result code, or no usable response
//   - ReasonTimedOut: nothing arrived within the budget
//   - ReasonInterrupted: the context was cancelled during the wait
//
// A nil handle, a handle that was already waited on, and an invalid budget
// are caller bugs. They are returned as a *PreconditionError and never folded
// into an Outcome.
//
// The waiter never retries. A caller that wants another attempt submits a new
// transaction.
package txn
