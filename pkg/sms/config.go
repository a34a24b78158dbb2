package sms

// Config holds Twilio credentials. Empty credentials select LogSender.
type Config struct {
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	FromNumber       string `env:"TWILIO_FROM_NUMBER"`
}

// Enabled reports whether Twilio credentials are configured.
func (c Config) Enabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}
