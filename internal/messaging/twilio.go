package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// phoneNumberRegex strips everything that is not a digit or leading plus.
var phoneNumberRegex = regexp.MustCompile(`[^0-9+]`)

// TwilioOpts holds configuration for the Twilio-backed senders.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	From       string
}

// TwilioOption defines a configuration option for the Twilio senders.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID, overriding $TWILIO_ACCOUNT_SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token, overriding $TWILIO_AUTH_TOKEN.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number, overriding $TWILIO_FROM_NUMBER.
func WithFrom(from string) TwilioOption {
	return func(o *TwilioOpts) { o.From = from }
}

// messageCreator is the slice of the Twilio REST client the senders use.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers messages through the Twilio API. The same client
// serves SMS and WhatsApp; the addressPrefix selects the product.
type TwilioSender struct {
	api           messageCreator
	from          string
	addressPrefix string // "" for SMS, "whatsapp:" for chat
}

func newTwilioSender(prefix string, opts ...TwilioOption) (*TwilioSender, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio sender config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{api: client.Api, from: prefix + cfg.From, addressPrefix: prefix}, nil
}

// NewSMSSender creates a Twilio sender for plain SMS delivery.
func NewSMSSender(opts ...TwilioOption) (*TwilioSender, error) {
	return newTwilioSender("", opts...)
}

// NewChatSender creates a Twilio sender for WhatsApp delivery.
func NewChatSender(opts ...TwilioOption) (*TwilioSender, error) {
	return newTwilioSender("whatsapp:", opts...)
}

// CanonicalizePhone validates and canonicalizes a phone number, keeping only
// digits and a leading plus. Numbers shorter than 6 digits are rejected.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	digits := len(canonical)
	if len(canonical) > 0 && canonical[0] == '+' {
		digits--
	}
	if digits < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	if canonical != recipient {
		slog.Debug("CanonicalizePhone modified recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Send delivers a message to the recipient phone number. Subject is folded
// into the body since neither SMS nor WhatsApp carries one.
func (s *TwilioSender) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to, err := CanonicalizePhone(recipient)
	if err != nil {
		return err
	}
	if subject != "" {
		body = subject + "\n\n" + body
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(s.addressPrefix + to)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("Twilio message sent", "to", to, "whatsapp", s.addressPrefix != "")
	return nil
}
