// Package sms sends text messages for the sms notification channel.
//
// Sender is the transport contract. NewTwilioClient sends through Twilio's
// Messages API; LogSender only logs the message and is used in development.
//
//	sender, err := sms.NewTwilioClient(cfg)
//	if err != nil {
//	    return err
//	}
//	err = sender.SendSMS(ctx, sms.Message{To: "+15551234567", Body: "Leave approved"})
package sms
