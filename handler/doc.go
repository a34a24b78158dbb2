// Package handler turns typed request handlers into http.HandlerFunc values
// for the admin JSON API.
//
// A handler receives a bound request struct and returns a Response:
//
//	type enqueueRequest struct {
//		UserID       int64          `json:"user_id"`
//		TemplateName string         `json:"template_name"`
//		Payload      map[string]any `json:"payload"`
//	}
//
//	func enqueue(ctx handler.Context, req enqueueRequest) handler.Response {
//		n, err := svc.Queue(ctx, req.UserID, req.TemplateName, req.Payload)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(map[string]int{"queued": n}, handler.WithJSONStatus(http.StatusAccepted))
//	}
//
//	r.Post("/queue", handler.Wrap(enqueue,
//		handler.WithBinders[handler.Context, enqueueRequest](binder.JSON()),
//		handler.WithErrorHandler[handler.Context, enqueueRequest](errHandler),
//	))
//
// Binders run in order and fill the request struct from the body, path and
// query string. A binder that returns binder.ErrBinderNotApplicable is
// skipped. Binding and rendering failures go to the configured ErrorHandler;
// NewErrorHandler writes them as a JSON error envelope and logs them with
// the request id.
//
// Every JSON body has the same shape:
//
//	{"data": ..., "meta": {...}, "error": {"code": "...", "message": "...", "details": {...}}}
//
// Domain errors are mapped to HTTP statuses by wrapping them with an
// HTTPError (see ErrNotFound, ErrConflict and friends) or by passing a
// classifier to NewErrorHandler and JSONError callers.
package handler
