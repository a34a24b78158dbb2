// Package binder fills request structs from HTTP request data.
//
// Three binders are provided, each driven by its own struct tag:
//
//   - JSON() decodes the request body (`json` tags), strictly: unknown
//     fields and trailing data are rejected and the body is capped at
//     DefaultMaxJSONSize.
//   - Path(extractor) reads route parameters (`path` tags) through an
//     extractor such as chi.URLParam.
//   - Query() reads the URL query string (`query` tags). Slices accept
//     repeated keys or comma separated values.
//
// Path and query values decode into strings, bools, numbers and any type
// implementing encoding.TextUnmarshaler, so time.Time (RFC 3339) and
// uuid.UUID work out of the box.
//
// A `-` tag skips the field. Pointer fields stay nil when the value is
// absent, which is how optional filters are expressed:
//
//	type listRequest struct {
//		UserID     int64    `json:"-" path:"userID"`
//		Limit      int      `query:"limit"`
//		OnlyUnread bool     `query:"only_unread"`
//		Types      []string `query:"types"`
//	}
//
// Failures wrap one of the package errors (ErrFailedToParseJSON,
// ErrFailedToParsePath and so on) so callers can map them to HTTP statuses.
package binder
