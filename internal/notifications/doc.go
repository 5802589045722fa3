// Package notifications sends the e-mail that announces a finished sequencing
// run.
//
// Delivery uses go-mail against an SMTP relay with mandatory STARTTLS and PLAIN
// auth. Credentials come from SMTP_USER and SMTP_PASSWORD at send time; when
// either is missing the service fails fast with ErrMissingCredentials. With no
// recipients configured NewService returns a noop implementation.
package notifications
