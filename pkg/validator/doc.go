// Package validator builds declarative validation out of small Rule values.
//
// A Rule pairs a Check func with the field error reported when the check
// fails. Apply evaluates every rule and returns the failures as
// ValidationErrors, which implements error:
//
//	err := validator.Apply(
//		validator.Positive("user_id", req.UserID),
//		validator.Required("template_name", req.TemplateName),
//		validator.MaxLen("template_name", req.TemplateName, 100),
//		validator.Check("channel", channelErr == nil, "unknown channel"),
//	)
//
// Rules are evaluated eagerly and all failures are collected, so callers can
// report every bad field in one response.
package validator
