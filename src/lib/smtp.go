package lib

import (
	"errors"
	"log"
	"os"
	"strconv"

	"github.com/wneessen/go-mail"
)

func smtpPort(fallback int) int {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		return fallback
	}
	return port
}

func newSMTPClient(host string, port int, user, pass string) (*mail.Client, error) {
	c, err := mail.NewClient(
		host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(user),
		mail.WithPassword(pass),
	)
	if err != nil {
		log.Printf("Could not initialize smtp client for %s: %s\n", host, err.Error())
		return nil, err
	}
	return c, nil
}

// SMTPNewDefault picks the relay named by SMTP_PROVIDER. Receipts go out through whichever
// relay the congregation has an account with.
func SMTPNewDefault() (*mail.Client, error) {
	switch os.Getenv("SMTP_PROVIDER") {
	case "sendgrid":
		return newSMTPClient("smtp.sendgrid.net", smtpPort(587), os.Getenv("SENDGRID_SMTP_USER"), os.Getenv("SENDGRID_API_KEY"))
	case "gmail":
		return newSMTPClient("smtp.gmail.com", 587, os.Getenv("GMAIL_USERNAME"), os.Getenv("GMAIL_PASSWORD"))
	}
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil, errors.New("smtp is not configured")
	}
	return newSMTPClient(host, smtpPort(587), os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"))
}

func SendMail(inputParams *SendMailInput) error {
	c, err := SMTPNewDefault()
	if err != nil {
		return err
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat(inputParams.FromName, inputParams.From); err != nil {
		log.Printf("Failed to set From address: %s\n", err.Error())
	}
	if err := msg.To(inputParams.To...); err != nil {
		log.Printf("Failed to set To address: %s\n", err.Error())
	}
	if inputParams.ReplyTo != "" {
		if err := msg.ReplyTo(inputParams.ReplyTo); err != nil {
			log.Printf("Failed to set Reply-To address: %s\n", err.Error())
		}
	}
	if err := msg.Cc(inputParams.Cc...); err != nil {
		log.Printf("Failed to set Cc address: %s\n", err.Error())
	}
	if err := msg.Bcc(inputParams.Bcc...); err != nil {
		log.Printf("Failed to set Bcc address: %s\n", err.Error())
	}
	msg.Subject(inputParams.Subject)
	if inputParams.Html {
		msg.SetBodyString(mail.TypeTextHTML, inputParams.Body)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, inputParams.Body)
	}
	if err := c.DialAndSend(msg); err != nil {
		return err
	}
	return nil
}

type SendMailInput struct {
	From     string   `json:"from"`
	FromName string   `json:"from-name"`
	To       []string `json:"to"`
	Cc       []string `json:"cc"`
	Bcc      []string `json:"bcc"`
	ReplyTo  string   `json:"reply-to"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	Html     bool     `json:"html"`
}
