package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-funnel-backend/internal/domain"
)

// fakeDispatcher records sends and can be told to fail.
type fakeDispatcher struct {
	calls []sentReply
	err   error
}

type sentReply struct {
	recipientID string
	text        string
	buttonLabel string
	buttonURL   string
}

func (f *fakeDispatcher) SendTextWithButton(ctx context.Context, recipientID, text, buttonLabel, buttonURL string) error {
	f.calls = append(f.calls, sentReply{recipientID, text, buttonLabel, buttonURL})
	return f.err
}

type fakeDeepLink struct{ url string }

func (f fakeDeepLink) StartURL(codeWord string) string { return f.url }

func newDirectService(t *testing.T, disp *fakeDispatcher, dl DeepLinker) *DirectService {
	t.Helper()
	db := newServicesDB(t, &domain.CodeWordEntry{}, &domain.RepliedRecipient{})
	seedEntry(t, db, nil, "гайд", true)
	return &DirectService{
		Registry:    NewRegistry(db),
		Ledger:      NewLedger(db),
		Dispatcher:  disp,
		DeepLink:    dl,
		ButtonLabel: "Open bot",
	}
}

func TestHandleMessage_MatchSendsAndMarks(t *testing.T) {
	disp := &fakeDispatcher{}
	svc := newDirectService(t, disp, fakeDeepLink{url: "https://t.me/bot?start=гайд"})
	ctx := context.Background()

	msg := InboundMessage{SenderID: "u1", MessageID: "m1", Text: "хочу гайд"}
	if err := svc.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(disp.calls) != 1 {
		t.Fatalf("expected 1 send, got %d", len(disp.calls))
	}
	got := disp.calls[0]
	if got.recipientID != "u1" || got.buttonLabel != "Open bot" {
		t.Fatalf("unexpected send: %+v", got)
	}
	// Deep link wins over the entry's static redirect URL.
	if got.buttonURL != "https://t.me/bot?start=гайд" {
		t.Fatalf("expected deep link, got %q", got.buttonURL)
	}

	if !svc.Ledger.IsEventProcessed(EventDirect, "m1") {
		t.Fatalf("event should be marked after success")
	}
	replied, err := svc.Ledger.HasRecipientBeenRepliedTo(ctx, "u1")
	if err != nil || !replied {
		t.Fatalf("recipient should be marked: %v %v", replied, err)
	}
}

func TestHandleMessage_OnceEverPerRecipient(t *testing.T) {
	disp := &fakeDispatcher{}
	svc := newDirectService(t, disp, nil)
	ctx := context.Background()

	if err := svc.HandleMessage(ctx, InboundMessage{SenderID: "u1", MessageID: "m1", Text: "гайд"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Second matching message from the same sender, different event id.
	if err := svc.HandleMessage(ctx, InboundMessage{SenderID: "u1", MessageID: "m2", Text: "гайд снова"}); err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(disp.calls) != 1 {
		t.Fatalf("recipient must be replied to at most once ever, got %d sends", len(disp.calls))
	}
}

func TestHandleMessage_DuplicateEventDropped(t *testing.T) {
	disp := &fakeDispatcher{}
	svc := newDirectService(t, disp, nil)
	ctx := context.Background()

	msg := InboundMessage{SenderID: "u1", MessageID: "m1", Text: "гайд"}
	if err := svc.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Platform redelivery of the exact same event.
	if err := svc.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(disp.calls) != 1 {
		t.Fatalf("duplicate event must not re-send, got %d", len(disp.calls))
	}
}

func TestHandleMessage_SendFailureLeavesUnmarked(t *testing.T) {
	disp := &fakeDispatcher{err: errors.New("network down")}
	svc := newDirectService(t, disp, nil)
	ctx := context.Background()

	msg := InboundMessage{SenderID: "u1", MessageID: "m1", Text: "гайд"}
	if err := svc.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("send failures are not pipeline errors: %v", err)
	}

	if svc.Ledger.IsEventProcessed(EventDirect, "m1") {
		t.Fatalf("failed send must leave the event unmarked")
	}
	replied, _ := svc.Ledger.HasRecipientBeenRepliedTo(ctx, "u1")
	if replied {
		t.Fatalf("failed send must leave the recipient unmarked")
	}

	// A redelivery after the failure goes through.
	disp.err = nil
	if err := svc.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(disp.calls) != 2 || !svc.Ledger.IsEventProcessed(EventDirect, "m1") {
		t.Fatalf("retry should send and mark")
	}
}

func TestHandleMessage_NoMatchAndMalformed(t *testing.T) {
	disp := &fakeDispatcher{}
	svc := newDirectService(t, disp, nil)
	ctx := context.Background()

	// No code word in the text: dropped, but the sender stays eligible.
	if err := svc.HandleMessage(ctx, InboundMessage{SenderID: "u1", MessageID: "m1", Text: "привет"}); err != nil {
		t.Fatalf("no match: %v", err)
	}
	if svc.Ledger.IsEventProcessed(EventDirect, "m1") {
		t.Fatalf("non-matching event must stay unmarked")
	}

	// Malformed events (missing ids) are dropped silently.
	if err := svc.HandleMessage(ctx, InboundMessage{Text: "гайд"}); err != nil {
		t.Fatalf("malformed: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Fatalf("nothing should have been sent, got %d", len(disp.calls))
	}

	// The sender can still match later.
	if err := svc.HandleMessage(ctx, InboundMessage{SenderID: "u1", MessageID: "m2", Text: "теперь гайд"}); err != nil {
		t.Fatalf("later match: %v", err)
	}
	if len(disp.calls) != 1 {
		t.Fatalf("expected the later message to be replied")
	}
}

func TestHandleMessage_FallsBackToEntryRedirectURL(t *testing.T) {
	disp := &fakeDispatcher{}
	db := newServicesDB(t, &domain.CodeWordEntry{}, &domain.RepliedRecipient{})
	e := seedEntry(t, db, nil, "promo", true)
	e.RedirectURL = "https://example.com/landing"
	if err := db.Save(e).Error; err != nil {
		t.Fatalf("save: %v", err)
	}

	svc := &DirectService{
		Registry:    NewRegistry(db),
		Ledger:      NewLedger(db),
		Dispatcher:  disp,
		DeepLink:    nil, // bot unavailable
		ButtonLabel: "Open",
	}
	if err := svc.HandleMessage(context.Background(), InboundMessage{SenderID: "u1", MessageID: "m1", Text: "promo"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(disp.calls) != 1 || disp.calls[0].buttonURL != "https://example.com/landing" {
		t.Fatalf("expected static redirect URL, got %+v", disp.calls)
	}
}
