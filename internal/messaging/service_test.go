package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/edumesones/clientflow-pro/internal/models"
)

func TestDispatcher_SendRoutesToChannel(t *testing.T) {
	email := NewMockSender()
	sms := NewMockSender()
	d := NewDispatcher(
		WithSender(models.ChannelEmail, email),
		WithSender(models.ChannelSMS, sms),
	)

	if ok := d.Send(context.Background(), models.ChannelEmail, "a@b.com", "Hi", "body"); !ok {
		t.Fatal("expected email send to succeed")
	}
	if len(email.Sent()) != 1 || len(sms.Sent()) != 0 {
		t.Errorf("message routed to wrong channel: email=%d sms=%d", len(email.Sent()), len(sms.Sent()))
	}
	got := email.Sent()[0]
	if got.To != "a@b.com" || got.Subject != "Hi" || got.Body != "body" {
		t.Errorf("unexpected message: %+v", got)
	}
}

func TestDispatcher_DisabledChannelIsNoOpSuccess(t *testing.T) {
	d := NewDispatcher() // nothing registered
	if ok := d.Send(context.Background(), models.ChannelChat, "+15550001111", "", "hello"); !ok {
		t.Error("disabled channel must report success so agents proceed")
	}
	if d.Enabled(models.ChannelChat) {
		t.Error("channel should report disabled")
	}
}

func TestDispatcher_TransportErrorReportsFailure(t *testing.T) {
	failing := NewMockSender()
	failing.Err = errors.New("boom")
	d := NewDispatcher(WithSender(models.ChannelEmail, failing))
	if ok := d.Send(context.Background(), models.ChannelEmail, "a@b.com", "s", "b"); ok {
		t.Error("expected failure when transport errors")
	}
}

func TestDispatcher_RejectsEmptyRecipientAndUnknownChannel(t *testing.T) {
	d := NewDispatcher(WithSender(models.ChannelEmail, NewMockSender()))
	if d.Send(context.Background(), models.ChannelEmail, "", "s", "b") {
		t.Error("expected failure for empty recipient")
	}
	if d.Send(context.Background(), models.Channel("pigeon"), "a@b.com", "s", "b") {
		t.Error("expected failure for unknown channel")
	}
}

func TestCanonicalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+1 (555) 000-1111", "+15550001111", false},
		{"15550001111", "15550001111", false},
		{"", "", true},
		{"+123", "", true},
		{"abc", "", true},
	}
	for _, c := range cases {
		got, err := CanonicalizePhone(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("CanonicalizePhone(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("CanonicalizePhone(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("CanonicalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
