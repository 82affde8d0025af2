package emailsvc

import (
	"bytes"
	"io"
	"log"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ushauri/core"
	appfs "github.com/trezcool/ushauri/fs"
	logsvc "github.com/trezcool/ushauri/services/logger"
)

func testSetup(t *testing.T) *core.Config {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	return conf
}

func passwordResetMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Amani", Address: "amani@ushauri.test"}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": "Amani", "UID": "dWlk", "Token": "tok-en"},
	}
}

func TestConsoleServiceMock(t *testing.T) {
	conf := testSetup(t)
	svc := NewConsoleServiceMock(conf)

	svc.SendMessages(
		passwordResetMessage(),
		&core.EmailMessage{Subject: "no recipients", BodyStr: "hello"},
		&core.EmailMessage{To: []mail.Address{{Address: "empty@ushauri.test"}}, Subject: "no content"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Amani")
	assert.Contains(t, sent[0].TextContent, conf.FrontendBaseURL)
	assert.Contains(t, sent[0].HTMLContent, "tok-en")

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleServiceWrite(t *testing.T) {
	conf := testSetup(t)
	svc := NewConsoleServiceMock(conf)

	msg := passwordResetMessage()
	msg.Cc = []mail.Address{{Address: "counselor@ushauri.test"}}
	require.NoError(t, msg.Attach(strings.NewReader("date,course\n2024-01-01,Math\n"), "plan.csv", "text/csv"))
	require.NoError(t, msg.Render())

	body := new(bytes.Buffer)
	require.NoError(t, svc.write(body, *msg))
	out := body.String()

	for _, want := range []string{
		"Subject: [" + conf.AppName + "] Password Reset",
		"To: \"Amani\" <amani@ushauri.test>",
		"Cc: <counselor@ushauri.test>",
		"multipart/mixed; boundary=",
		"multipart/alternative; boundary=",
		"text/plain; charset=utf-8",
		"text/html; charset=utf-8",
		`attachment; filename="plan.csv"`,
		msg.Attachments[0].Content.String(),
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Bcc:")
}

func TestSendgridPrepare(t *testing.T) {
	conf := testSetup(t)
	svc := NewSendgridService(nil, conf)

	msg := passwordResetMessage()
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n"), "plan.csv", "text/csv"))
	require.NoError(t, msg.Render())

	m := svc.prepare(*msg)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "["+conf.AppName+"] Password Reset", m.Personalizations[0].Subject)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "amani@ushauri.test", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "plan.csv", m.Attachments[0].Filename)
	assert.Equal(t, conf.DefaultFromEmail().Address, m.From.Address)
}
