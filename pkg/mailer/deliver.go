package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mailtpl "github.com/oksasatya/minha-cantina/pkg/mailer/templates"
)

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

var errNoRecipient = errors.New("email job has no recipient")

// Compose fills Subject/Text/HTML from the job's template when one is named.
func Compose(job EmailJob) (EmailJob, error) {
	job.To = strings.TrimSpace(job.To)
	if job.To == "" {
		return job, errNoRecipient
	}
	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return job, fmt.Errorf("email job to %s has neither template nor body", job.To)
		}
		return job, nil
	}
	subject, text, html, err := mailtpl.Render(job.Template, job.Data)
	if err != nil {
		return job, fmt.Errorf("render %s: %w", job.Template, err)
	}
	job.Subject, job.Text, job.HTML = subject, text, html
	return job, nil
}

// Deliver decodes a queued job, renders it and sends it. requeue reports
// whether a failure is transient and the message should be retried.
func Deliver(ctx context.Context, s Sender, body []byte, timeout time.Duration) (requeue bool, err error) {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return false, fmt.Errorf("bad message: %w", err)
	}
	job, err = Compose(job)
	if err != nil {
		return false, err
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Send(c, job.To, job.Subject, job.Text, job.HTML); err != nil {
		return true, fmt.Errorf("send to %s: %w", job.To, err)
	}
	return false, nil
}
