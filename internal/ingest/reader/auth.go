package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// ErrSignupNotSupported indicates that signup is not supported.
var ErrSignupNotSupported = errors.New("signup not supported")

const minPhoneLength = 10

func (c *Client) authFlow() auth.Flow {
	return auth.NewFlow(c, auth.SendCodeOptions{})
}

func (c *Client) prompt(label string) (string, error) {
	fmt.Printf("Enter %s: ", label)

	line, err := c.stdin.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}

	return strings.TrimSpace(line), nil
}

func (c *Client) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return c.prompt("code")
}

func (c *Client) Phone(_ context.Context) (string, error) {
	phone := c.cfg.TGPhone
	if phone == "" {
		var err error

		phone, err = c.prompt("phone")
		if err != nil {
			return "", err
		}
	}

	phone = sanitizePhone(phone)
	c.logger.Info().Str("phone", maskPhone(phone)).Msg("Using phone number")

	if len(phone) < minPhoneLength {
		c.logger.Warn().Int("length", len(phone)).Msg("Phone number seems too short, it might be invalid. Ensure it includes country code (e.g. +1...)")
	}

	return phone, nil
}

func (c *Client) Password(_ context.Context) (string, error) {
	if c.cfg.TG2FAPassword != "" {
		return strings.TrimSpace(c.cfg.TG2FAPassword), nil
	}

	return c.prompt("2FA password")
}

func (c *Client) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (c *Client) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, ErrSignupNotSupported
}

func sanitizePhone(phone string) string {
	var sb strings.Builder

	phone = strings.TrimSpace(phone)

	if strings.HasPrefix(phone, "+") {
		sb.WriteByte('+')

		phone = phone[1:]
	}

	for _, char := range phone {
		if char >= '0' && char <= '9' {
			sb.WriteRune(char)
		}
	}

	return sb.String()
}

func maskPhone(phone string) string {
	if len(phone) < 7 {
		return "****"
	}

	return phone[:3] + "****" + phone[len(phone)-2:]
}
