package tracing

// Span attribute keys shared by the fetch executor and service adapters.
const (
	AttrInvocationID = "fetch.invocation_id"
	AttrPageOffset   = "fetch.page.offset"
	AttrPageCount    = "fetch.page.count"
	AttrConcurrency  = "fetch.concurrency"
	AttrBackend      = "service.backend"
	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanFetch = "fetch.run"
	SpanPage  = "fetch.page"
)
