package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOTP(t *testing.T) {
	body, err := renderOTP("123456", PurposeReset)
	require.NoError(t, err)
	assert.Contains(t, body, "Password Reset OTP")
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "15 minutes")

	assert.Equal(t, "Email Verification OTP", subjectFor(PurposeVerification))
}

func TestEnvelopeAddr(t *testing.T) {
	assert.Equal(t, "support@shop.io", envelopeAddr("Marketplace <support@shop.io>"))
	assert.Equal(t, "support@shop.io", envelopeAddr(" support@shop.io "))
}

func TestBuildRaw(t *testing.T) {
	raw := string(buildRaw("Shop <s@shop.io>", "a@b.co", "Email Verification OTP", "<p>hi</p>"))
	assert.Contains(t, raw, "To: a@b.co\r\n")
	assert.Contains(t, raw, "Subject: Email Verification OTP\r\n")
	assert.Contains(t, raw, "\r\n\r\n<p>hi</p>")
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{}.SendOTP(context.Background(), "a@b.co", "000000", PurposeVerification))
}
