package mailer

// Template names understood by the email worker.
const (
	TemplateVerifyEmail    = "verify_email"
	TemplateForgotPassword = "forgot_password"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// When Template is set the worker renders subject and body from Data;
// otherwise Subject/Text/HTML are used verbatim.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}
