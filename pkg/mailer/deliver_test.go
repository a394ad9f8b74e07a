package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mailtpl "github.com/oksasatya/minha-cantina/pkg/mailer/templates"
)

type fakeSender struct {
	to, subject, text, html string
	calls                   int
	err                     error
}

func (f *fakeSender) Send(_ context.Context, to, subject, text, html string) error {
	f.calls++
	f.to, f.subject, f.text, f.html = to, subject, text, html
	return f.err
}

func encode(t *testing.T, job EmailJob) []byte {
	t.Helper()
	b, err := json.Marshal(job)
	require.NoError(t, err)
	return b
}

func TestDeliverRendersTemplate(t *testing.T) {
	s := &fakeSender{}
	job := EmailJob{
		To:       " staff@cantina.test ",
		Template: mailtpl.SignupNotification,
		Data:     mailtpl.NewSignupNotificationData(mailtpl.Brand{AppName: "Cantina"}, "Ana", "ana", "staff@cantina.test"),
	}

	requeue, err := Deliver(context.Background(), s, encode(t, job), time.Second)
	require.NoError(t, err)
	assert.False(t, requeue)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, "staff@cantina.test", s.to)
	assert.Equal(t, "[Cantina] Novo cadastro: ana", s.subject)
	assert.Contains(t, s.text, "Ana")
	assert.NotEmpty(t, s.html)
}

func TestDeliverRawBody(t *testing.T) {
	s := &fakeSender{}
	job := EmailJob{To: "a@b.c", Subject: "oi", Text: "corpo"}

	_, err := Deliver(context.Background(), s, encode(t, job), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "oi", s.subject)
	assert.Equal(t, "corpo", s.text)
}

func TestDeliverDropsBadJobs(t *testing.T) {
	cases := map[string][]byte{
		"not json":         []byte("{"),
		"no recipient":     []byte(`{"subject":"x","text":"y"}`),
		"no body":          []byte(`{"to":"a@b.c","subject":"x"}`),
		"unknown template": []byte(`{"to":"a@b.c","template":"nope"}`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s := &fakeSender{}
			requeue, err := Deliver(context.Background(), s, body, time.Second)
			assert.Error(t, err)
			assert.False(t, requeue)
			assert.Zero(t, s.calls)
		})
	}
}

func TestDeliverRequeuesSendFailure(t *testing.T) {
	s := &fakeSender{err: errors.New("mailgun 503")}

	requeue, err := Deliver(context.Background(), s, encode(t, EmailJob{To: "a@b.c", Subject: "x", HTML: "<p>y</p>"}), time.Second)
	assert.Error(t, err)
	assert.True(t, requeue)
}
