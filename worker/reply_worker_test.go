package worker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMessageID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<3f1c9a2e-1d60-4df2-9a44-b1a2cdd6e1cf@propflow>", "3f1c9a2e-1d60-4df2-9a44-b1a2cdd6e1cf"},
		{" <abc123@mail.example.com> ", "abc123"},
		{"plain-id", "plain-id"},
		{"", ""},
		{"<>", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractMessageID(tt.in), tt.in)
	}
}

func TestReplySnippet(t *testing.T) {
	raw := strings.Join([]string{
		"From: Sipho Dlamini <sipho@example.com>",
		"To: agent@propflow.example",
		"Subject: Re: Viewing this Saturday",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Yes, Saturday at 10 works for me.",
		"",
		"On Mon, 2 Mar 2026 at 09:00, Agent wrote:",
		"> Would Saturday suit you for a viewing?",
	}, "\r\n")

	got := replySnippet(strings.NewReader(raw))
	assert.Equal(t, "Yes, Saturday at 10 works for me.", got)
}

func TestReplySnippetNonText(t *testing.T) {
	raw := strings.Join([]string{
		"Subject: Re: hello",
		"Content-Type: application/octet-stream",
		"",
		"binarybinarybinary",
	}, "\r\n")

	assert.Equal(t, "", replySnippet(strings.NewReader(raw)))
}
