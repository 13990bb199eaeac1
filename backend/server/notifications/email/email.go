package email

import (
	"fmt"
	"net/smtp"
)

// smtpServer is the address of the SMTP server used to send mail.
var smtpServer string

// auth holds the authentication data for the SMTP server.
var auth smtp.Auth

// fromEmail is the "From" address of outgoing mail.
var fromEmail string

// InitEmailService configures the SMTP sender with the given account and
// verifies that the server is reachable.
func InitEmailService(sender, password string) (bool, error) {
	smtpServer = "smtp.gmail.com:587"
	fromEmail = sender

	auth = smtp.PlainAuth(
		"",
		sender,
		password,
		"smtp.gmail.com",
	)

	c, err := smtp.Dial(smtpServer)
	if err != nil {
		return false, fmt.Errorf("cannot connect to the SMTP server: %v", err)
	}

	err = c.Close()
	if err != nil {
		return false, fmt.Errorf("cannot close the SMTP connection: %v", err)
	}

	return true, nil
}

// SendWelcomeEmail sends the post-registration greeting to a new user.
func SendWelcomeEmail(to, username string) error {
	headers := make(map[string]string)
	headers["From"] = fromEmail
	headers["To"] = to
	headers["Subject"] = "Welcome to HabitLoop"
	headers["MIME-version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=\"UTF-8\""

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}

	body := `
	<html>
		<body>
			<div style="max-width: 600px; margin: 0 auto; padding: 10px;">
				<h1>Welcome, ` + username + `!</h1>
				<p>Your HabitLoop account is ready. Create your first habit and
				check in every day to start building a streak.</p>
				<p>Small steps, every day.</p>
			</div>
		</body>
	</html>
	`
	message += "\r\n" + body

	err := smtp.SendMail(
		smtpServer,
		auth,
		fromEmail,
		[]string{to},
		[]byte(message),
	)
	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
