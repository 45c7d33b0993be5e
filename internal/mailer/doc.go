// Package mailer composes transactional email and delivers it through Resend.
//
// A [Message] is provider-neutral. [ResendDelivery] translates it into the Resend
// /emails payload:
//
//	from, to[], cc[]?, bcc[]?, subject, html?, text?, headers?, attachments?[{filename, content, type}]
//
// The HTML body is preferred and the text body is only sent when there is no HTML. Custom
// headers are copied except for envelope headers, which Resend derives from the payload
// fields. Attachment content is base64-encoded. Failures are returned to the caller and
// never retried.
//
// [Mailer] renders the welcome and reminder emails from embedded templates and hands them
// to a [Deliverer]. [RecordingDeliverer] keeps messages in memory for tests and dry runs.
package mailer
