package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbc-edu/eduplatform/core"
)

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf)
	to := []mail.Address{{Name: "Jane", Address: "jane@example.com"}}

	tests := []struct {
		name     string
		msg      core.EmailMessage
		wantSent bool
		wantText string
	}{
		{name: "no recipients", msg: core.EmailMessage{Subject: "Hi", BodyStr: "Hello"}},
		{name: "no content", msg: core.EmailMessage{To: to, Subject: "Hi"}},
		{name: "unknown template", msg: core.EmailMessage{To: to, Subject: "Hi", TemplateName: "nope"}},
		{name: "plain body", msg: core.EmailMessage{To: to, Subject: "Hi", BodyStr: "Hello"}, wantSent: true, wantText: "Hello"},
		{
			name: "template",
			msg: core.EmailMessage{
				To:           to,
				Subject:      "Payment received",
				TemplateName: "payment_receipt",
				TemplateData: map[string]string{"Name": "Jane", "Amount": "KSh5,000", "Plan": "Tuition", "Reference": "EDU-1"},
			},
			wantSent: true,
			wantText: "We received your payment of KSh5,000 for Tuition.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetSentMessages()
			msg := tt.msg
			svc.SendMessages(&msg)

			sent := GetSentMessages()
			if !tt.wantSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Contains(t, sent[0].TextContent, tt.wantText)
		})
	}
}
