package aws

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
)

func GetSESClient() *ses.Client {
	cfg, err := lib.AWSConfig()
	if err != nil {
		return nil
	}
	return ses.NewFromConfig(*cfg)
}

// SESSendMail sends a queued mail message through SES.
func SESSendMail(in *lib.SendMailInput) error {
	from := in.From
	if in.FromName != "" {
		from = fmt.Sprintf("%s <%s>", in.FromName, in.From)
	}
	body := &types.Body{}
	content := &types.Content{Data: aws.String(in.Body), Charset: aws.String("UTF-8")}
	if in.Html {
		body.Html = content
	} else {
		body.Text = content
	}
	var replyTo []string
	if in.ReplyTo != "" {
		replyTo = []string{in.ReplyTo}
	}
	c := GetSESClient()
	if c == nil {
		return fmt.Errorf("ses client unavailable")
	}
	_, err := c.SendEmail(context.TODO(), &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses:  in.To,
			CcAddresses:  in.Cc,
			BccAddresses: in.Bcc,
		},
		ReplyToAddresses: replyTo,
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(in.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	})
	if err != nil {
		log.Printf("[SES] Error sending email: %s\n", err.Error())
	}
	return err
}
