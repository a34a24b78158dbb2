// Package email sends the email channel of the notification engine.
//
// EmailSender is the transport contract. Two implementations ship with the
// package:
//   - the Postmark client (NewPostmarkClient) for production delivery with open
//     and link tracking
//   - DevSender, which writes every message to disk as an .html file plus a
//     .json metadata file so developers can inspect what would have been sent
//
// Both validate SendEmailParams before doing any I/O and wrap transport
// failures with ErrFailedToSendEmail.
//
// HTML bodies are rendered with templ components from the templates
// subpackage:
//
//	body, err := templates.Render(ctx, templates.Notification(title, message))
//	if err != nil {
//	    return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "employee@example.com",
//	    Subject:  "Leave approved",
//	    BodyHTML: body,
//	    Tag:      "leave_approved",
//	})
package email
