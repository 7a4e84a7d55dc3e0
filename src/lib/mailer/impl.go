package mailer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
	awslib "github.com/mrhoseah/shepherd-chMS-sub005/src/lib/aws"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/utils"
)

func EmailQueue() string {
	emailQueue := os.Getenv("EMAIL_QUEUE")
	if emailQueue == "" {
		emailQueue = "Emails"
	}
	return utils.WithSuffix(emailQueue)
}

// NewMailerMessage queues a message for delivery: Kafka when running locally, SQS otherwise.
func NewMailerMessage(input *lib.SendMailInput) error {
	if input == nil || len(input.To) == 0 {
		return fmt.Errorf("mail message has no recipient")
	}
	if input.From == "" {
		input.From = os.Getenv("MAIL_FROM")
	}
	if utils.IsLocal() {
		if err := lib.KafkaProduceMessage("emails", EmailQueue(), input); err != nil {
			return fmt.Errorf("error sending message to queue: %s", err.Error())
		}
		return nil
	}
	body, err := json.Marshal(input)
	if err != nil {
		return err
	}
	if err := lib.SQSProduceMessage(EmailQueue(), string(body)); err != nil {
		return fmt.Errorf("error sending message to queue: %s", err.Error())
	}
	return nil
}

func ParseMailerMessage(payload string) (*lib.SendMailInput, error) {
	var in lib.SendMailInput
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return nil, err
	}
	if len(in.To) == 0 {
		return nil, fmt.Errorf("mail message has no recipient")
	}
	return &in, nil
}

// Deliver sends a dequeued message through SES in production and SMTP elsewhere.
func Deliver(in *lib.SendMailInput) error {
	if utils.IsProd() {
		return awslib.SESSendMail(in)
	}
	return lib.SendMail(in)
}
