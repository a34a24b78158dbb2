// Package requestid carries a correlation id through a context.
//
// HTTP requests get one from Middleware, which reuses a well formed
// X-Request-ID header or generates a UUID. Background work such as a
// dispatcher tick calls Ensure so every log record of that unit of work
// shares an id. LoggerExtractor plugs the id into pkg/logger.
package requestid
