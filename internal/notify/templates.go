package notify

import "fmt"

// Message subjects for the two OTP mail flows.
const (
	RegistrationSubject  = "🔐 Verify Your Email - Registration OTP"
	PasswordResetSubject = "🔐 Reset Your Password - OTP Code"
)

const otpHTMLLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#f3f4f6;font-family:Arial,Helvetica,sans-serif;">
  <div style="max-width:600px;margin:0 auto;padding:24px;">
    <div style="background-color:#059669;border-radius:8px 8px 0 0;padding:24px;text-align:center;">
      <h1 style="color:#ffffff;margin:0;font-size:22px;">KrishiConnect</h1>
    </div>
    <div style="background-color:#ffffff;border-radius:0 0 8px 8px;padding:32px;">
      <h2 style="color:#111827;margin-top:0;">%s</h2>
      <p style="color:#374151;">Hello %s,</p>
      <p style="color:#374151;">%s</p>
      <div style="background-color:#ecfdf5;border:1px solid #059669;border-radius:8px;padding:16px;text-align:center;margin:24px 0;">
        <span style="font-size:32px;font-weight:bold;letter-spacing:8px;color:#059669;">%s</span>
      </div>
      <p style="color:#6b7280;font-size:14px;">This code expires in %d minutes. Do not share it with anyone.</p>
      <p style="color:#6b7280;font-size:14px;">If you did not request this, you can safely ignore this email.</p>
    </div>
    <p style="color:#9ca3af;font-size:12px;text-align:center;margin-top:16px;">© KrishiConnect. Growing together.</p>
  </div>
</body>
</html>`

const otpTextLayout = `Hello %s,

%s

Your verification code: %s

This code expires in %d minutes. Do not share it with anyone.
If you did not request this, you can safely ignore this email.

- KrishiConnect`

// RegistrationEmail renders the registration OTP message.
func RegistrationEmail(name, code string, ttlMinutes int) (html, text string) {
	if name == "" {
		name = "Farmer"
	}
	intro := "Welcome to KrishiConnect! Use the code below to verify your email address and finish creating your account."
	html = fmt.Sprintf(otpHTMLLayout, "Verify Your Email", name, intro, code, ttlMinutes)
	text = fmt.Sprintf(otpTextLayout, name, intro, code, ttlMinutes)
	return html, text
}

// PasswordResetEmail renders the password reset OTP message.
func PasswordResetEmail(name, code string, ttlMinutes int) (html, text string) {
	if name == "" {
		name = "Farmer"
	}
	intro := "We received a request to reset your password. Use the code below to continue."
	html = fmt.Sprintf(otpHTMLLayout, "Reset Your Password", name, intro, code, ttlMinutes)
	text = fmt.Sprintf(otpTextLayout, name, intro, code, ttlMinutes)
	return html, text
}
