package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/m3rciful/fundbot/internal/domain"
)

// fakeLedger is an in-memory Ledger honoring the same uniqueness rules as
// the relational store.
type fakeLedger struct {
	mu      sync.Mutex
	goals   []*domain.Goal
	pledges []*domain.Pledge
	nextID  int64

	failNext error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{nextID: 1}
}

func (f *fakeLedger) addActiveGoal(title string, target int64) *domain.Goal {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.goals {
		g.IsActive = false
	}
	g := &domain.Goal{ID: f.nextID, Title: title, TargetAmount: target, IsActive: true}
	f.nextID++
	f.goals = append(f.goals, g)
	return g
}

func (f *fakeLedger) GetActiveGoal(ctx context.Context) (*domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	for _, g := range f.goals {
		if g.IsActive {
			copied := *g
			return &copied, nil
		}
	}
	return nil, domain.NewNotFound("no active goal")
}

func (f *fakeLedger) CreateGoal(ctx context.Context, title, description string, target int64) (*domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.goals {
		g.IsActive = false
	}
	g := &domain.Goal{ID: f.nextID, Title: title, Description: description, TargetAmount: target, IsActive: true}
	f.nextID++
	f.goals = append(f.goals, g)
	copied := *g
	return &copied, nil
}

func (f *fakeLedger) FindPledgeByChargeID(ctx context.Context, chargeID string) (*domain.Pledge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pledges {
		if p.ChargeID == chargeID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, domain.NewNotFound("pledge for charge %s not found", chargeID)
}

func (f *fakeLedger) RecordCompletedPayment(ctx context.Context, p *domain.Pledge) (*domain.Pledge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.pledges {
		if existing.ChargeID == p.ChargeID {
			return nil, domain.NewDuplicate(fmt.Sprintf("charge %s already recorded", p.ChargeID), nil)
		}
	}
	stored := *p
	stored.ID = f.nextID
	f.nextID++
	f.pledges = append(f.pledges, &stored)
	for _, g := range f.goals {
		if g.ID == p.GoalID {
			g.CurrentAmount += p.Amount
		}
	}
	copied := stored
	return &copied, nil
}

func (f *fakeLedger) ActiveGoalStats(ctx context.Context) (*domain.GoalStats, error) {
	goal, err := f.GetActiveGoal(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	donors := map[int64]struct{}{}
	var count int64
	for _, p := range f.pledges {
		if p.GoalID == goal.ID && p.Status == domain.PledgeStatusCompleted {
			donors[p.UserID] = struct{}{}
			count++
		}
	}
	return &domain.GoalStats{Goal: *goal, DonorCount: int64(len(donors)), DonationCount: count}, nil
}

func (f *fakeLedger) pledgeCount(chargeID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pledges {
		if p.ChargeID == chargeID {
			n++
		}
	}
	return n
}

func (f *fakeLedger) goalAmount(id int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.goals {
		if g.ID == id {
			return g.CurrentAmount
		}
	}
	return -1
}

// fakeEmitter records emitted invoices.
type fakeEmitter struct {
	mu       sync.Mutex
	invoices []Invoice
	chats    []int64
	fail     error
}

func (f *fakeEmitter) EmitInvoice(ctx context.Context, chatID int64, inv Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.invoices = append(f.invoices, inv)
	f.chats = append(f.chats, chatID)
	return nil
}

func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invoices)
}

func testConfig() PaymentConfig {
	return PaymentConfig{
		ProviderToken: "test-token",
		Currency:      "RUB",
		MinAmount:     10,
		MaxAmount:     100000,
		Presets:       []int64{100, 300, 500, 1000},
	}
}

func TestCreateInvoiceBounds(t *testing.T) {
	cases := []struct {
		name     string
		amount   int64
		wantKind domain.Kind
	}{
		{"below min", 9, domain.KindValidation},
		{"at min", 10, ""},
		{"preset", 500, ""},
		{"at max", 100000, ""},
		{"above max", 100001, domain.KindValidation},
		{"negative", -5, domain.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := newFakeLedger()
			ledger.addActiveGoal("Roof", 5000)
			emitter := &fakeEmitter{}
			svc := NewPaymentService(ledger, emitter, testConfig())

			err := svc.CreateInvoice(context.Background(), 100, 42, tc.amount)
			if tc.wantKind == "" {
				if err != nil {
					t.Fatalf("CreateInvoice: %v", err)
				}
				if emitter.count() != 1 {
					t.Fatalf("emitted %d invoices, want 1", emitter.count())
				}
				return
			}
			if !domain.IsKind(err, tc.wantKind) {
				t.Fatalf("kind = %v, want %v", domain.KindOf(err), tc.wantKind)
			}
			if emitter.count() != 0 {
				t.Fatal("no external call may happen on validation failure")
			}
		})
	}
}

func TestCreateInvoiceWithoutActiveGoal(t *testing.T) {
	ledger := newFakeLedger()
	emitter := &fakeEmitter{}
	svc := NewPaymentService(ledger, emitter, testConfig())

	err := svc.CreateInvoice(context.Background(), 100, 42, 500)
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("kind = %v, want not found", domain.KindOf(err))
	}
	if emitter.count() != 0 {
		t.Fatal("no invoice may be emitted without an active goal")
	}
}

func TestCreateInvoicePreset(t *testing.T) {
	// Scenario: a fixed "500" button produces an invoice in the goal's
	// currency and leaves the ledger untouched.
	ledger := newFakeLedger()
	goal := ledger.addActiveGoal("Roof", 5000)
	emitter := &fakeEmitter{}
	svc := NewPaymentService(ledger, emitter, testConfig())

	if err := svc.CreateInvoice(context.Background(), 100, 42, 500); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	inv := emitter.invoices[0]
	if inv.Amount != 500 || inv.Currency != "RUB" || inv.Title != "Roof" {
		t.Fatalf("invoice = %+v", inv)
	}
	if got := ParsePayload(inv.Payload); got != goal.ID {
		t.Fatalf("payload goal id = %d, want %d", got, goal.ID)
	}
	if len(ledger.pledges) != 0 {
		t.Fatal("no ledger row may exist before completion")
	}
}

func TestAuthorizePreCheckout(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewPaymentService(ledger, &fakeEmitter{}, testConfig())

	if err := svc.AuthorizePreCheckout(context.Background()); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not found without active goal, got %v", err)
	}

	ledger.addActiveGoal("Roof", 5000)
	if err := svc.AuthorizePreCheckout(context.Background()); err != nil {
		t.Fatalf("expected approval with active goal, got %v", err)
	}
}

func TestCompletePaymentRedelivery(t *testing.T) {
	// Scenario: chargeId "abc123" arrives twice; exactly one pledge and one
	// increment must result.
	ledger := newFakeLedger()
	goal := ledger.addActiveGoal("Roof", 5000)
	svc := NewPaymentService(ledger, &fakeEmitter{}, testConfig())

	in := CompletePaymentInput{ChargeID: "abc123", Amount: 500, Currency: "RUB", UserID: 42, PayloadGoalID: goal.ID}

	first, dup, err := svc.CompletePayment(context.Background(), in)
	if err != nil || dup {
		t.Fatalf("first completion: dup=%v err=%v", dup, err)
	}

	second, dup, err := svc.CompletePayment(context.Background(), in)
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if !dup {
		t.Fatal("redelivery must report duplicate")
	}
	if second.ID != first.ID {
		t.Fatalf("redelivery returned pledge %d, want %d", second.ID, first.ID)
	}

	if n := ledger.pledgeCount("abc123"); n != 1 {
		t.Fatalf("pledge count = %d, want 1", n)
	}
	if got := ledger.goalAmount(goal.ID); got != 500 {
		t.Fatalf("goal amount = %d, want 500", got)
	}
}

func TestCompletePaymentSumInvariant(t *testing.T) {
	ledger := newFakeLedger()
	goal := ledger.addActiveGoal("Roof", 5000)
	svc := NewPaymentService(ledger, &fakeEmitter{}, testConfig())

	amounts := []int64{100, 300, 500, 1000, 250}
	var sum int64
	for i, a := range amounts {
		_, _, err := svc.CompletePayment(context.Background(), CompletePaymentInput{
			ChargeID: fmt.Sprintf("charge-%d", i),
			Amount:   a,
			Currency: "RUB",
			UserID:   int64(i),
		})
		if err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
		sum += a
	}

	if got := ledger.goalAmount(goal.ID); got != sum {
		t.Fatalf("goal amount = %d, want %d", got, sum)
	}
}

func TestCompletePaymentWithoutActiveGoal(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewPaymentService(ledger, &fakeEmitter{}, testConfig())

	_, dup, err := svc.CompletePayment(context.Background(), CompletePaymentInput{
		ChargeID: "orphan", Amount: 500, Currency: "RUB", UserID: 42,
	})
	if dup {
		t.Fatal("orphaned payment is not a duplicate")
	}
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("kind = %v, want not found", domain.KindOf(err))
	}
}

func TestCompletePaymentTransientStorage(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addActiveGoal("Roof", 5000)
	ledger.failNext = domain.NewTransient("get active goal", errors.New("conn reset"))
	svc := NewPaymentService(ledger, &fakeEmitter{}, testConfig())

	_, _, err := svc.CompletePayment(context.Background(), CompletePaymentInput{
		ChargeID: "t1", Amount: 500, Currency: "RUB", UserID: 42,
	})
	if !domain.IsKind(err, domain.KindTransient) {
		t.Fatalf("kind = %v, want transient", domain.KindOf(err))
	}
	if n := ledger.pledgeCount("t1"); n != 0 {
		t.Fatalf("pledge count = %d, want 0", n)
	}
}

func TestParseAmount(t *testing.T) {
	svc := NewPaymentService(newFakeLedger(), &fakeEmitter{}, testConfig())

	cases := []struct {
		text    string
		want    int64
		wantErr bool
	}{
		{"500", 500, false},
		{" 500 ", 500, false},
		{"10", 10, false},
		{"100000", 100000, false},
		{"9", 0, true},
		{"100001", 0, true},
		{"abc", 0, true},
		{"12.5", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := svc.ParseAmount(tc.text)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error", tc.text)
			} else if !domain.IsKind(err, domain.KindValidation) {
				t.Errorf("ParseAmount(%q) kind = %v", tc.text, domain.KindOf(err))
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseAmount(%q) = %d, %v; want %d", tc.text, got, err, tc.want)
		}
	}
}

func TestParsePayload(t *testing.T) {
	payload := BuildPayload(7, 42)
	if got := ParsePayload(payload); got != 7 {
		t.Fatalf("ParsePayload = %d, want 7", got)
	}
	if got := ParsePayload("garbage"); got != 0 {
		t.Fatalf("ParsePayload(garbage) = %d, want 0", got)
	}
	if got := ParsePayload(""); got != 0 {
		t.Fatalf("ParsePayload(empty) = %d, want 0", got)
	}
}
