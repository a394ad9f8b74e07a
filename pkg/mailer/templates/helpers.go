package templates

import "time"

// Brand carries the company details every email shows.
type Brand struct {
	AppName        string
	CompanyName    string
	CompanyAddress string
	LogoURL        string
	SupportURL     string
}

// Option pattern
type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format("02/01/2006 15:04")
	}
}

func NewBaseEmailData(b Brand, typ, name, handle, recipient string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Handle:         handle,
		RecipientEmail: recipient,
		Type:           typ,

		CompanyName:    b.CompanyName,
		CompanyAddress: b.CompanyAddress,
		AppName:        b.AppName,
		LogoURL:        b.LogoURL,
		SupportURL:     b.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// NewSignupNotificationData builds the job data telling staff a customer registered.
func NewSignupNotificationData(b Brand, name, handle, recipient string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(b, SignupNotification, name, handle, recipient, opts...))
}
