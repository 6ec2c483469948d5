// Package admission decides whether an execution request may acquire
// resources.
//
// Requests pass three gates in order: a source-size cap, the per-requestor
// rate limiter, and a fixed pool of global concurrency slots. When every
// slot is busy the request waits in a bounded FIFO queue; once the queue is
// full new requests are rejected immediately rather than queued further.
// Rejections are cheap: no sandbox is ever created for a rejected request.
package admission
