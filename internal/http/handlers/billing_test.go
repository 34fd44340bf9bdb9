package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/sqlinline"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type billingTestSQL struct {
	insertRow func(args []any) pgx.Row
	markRow   func(args []any) pgx.Row
}

func (s *billingTestSQL) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *billingTestSQL) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (s *billingTestSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	switch query {
	case sqlinline.QInsertCheckoutIntent:
		if s.insertRow != nil {
			return s.insertRow(args)
		}
	case sqlinline.QMarkCheckoutByReference:
		if s.markRow != nil {
			return s.markRow(args)
		}
	}
	return NewSimpleRow(nil)
}

func newBillingApp(sql infra.SQLExecutor) *App {
	return &App{
		SQL:    sql,
		Logger: zerolog.New(io.Discard),
		Config: &infra.Config{BillingWebhookSecret: "hook-secret"},
	}
}

func signWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCheckoutCreatePersistsIntent(t *testing.T) {
	var captured []any
	db := &billingTestSQL{insertRow: func(args []any) pgx.Row {
		captured = args
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = "intent-1"
			return nil
		})
	}}
	app := newBillingApp(db)

	req := httptest.NewRequest("POST", "/v1/billing/checkout", bytes.NewReader([]byte(`{"plan":"pro"}`)))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rr := httptest.NewRecorder()
	app.CheckoutCreate(rr, req)

	if rr.Code != 201 {
		t.Fatalf("status = %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "intent-1" || resp["status"] != "PENDING" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if resp["reference"] == "" {
		t.Fatal("reference should be generated")
	}
	if captured[1] != "pro" {
		t.Fatalf("plan arg = %v, want pro", captured[1])
	}
}

func TestCheckoutCreateUnknownPlan(t *testing.T) {
	app := newBillingApp(&billingTestSQL{})
	req := httptest.NewRequest("POST", "/v1/billing/checkout", bytes.NewReader([]byte(`{"plan":"platinum"}`)))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rr := httptest.NewRecorder()
	app.CheckoutCreate(rr, req)

	if rr.Code != 400 {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestBillingWebhookRejectsBadSignature(t *testing.T) {
	app := newBillingApp(&billingTestSQL{})
	body := []byte(`{"reference":"ref-1","status":"PAID"}`)

	req := httptest.NewRequest("POST", "/v1/billing/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature", "deadbeef")
	rr := httptest.NewRecorder()
	app.BillingWebhook(rr, req)

	if rr.Code != 401 {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestBillingWebhookMarksPaid(t *testing.T) {
	var captured []any
	db := &billingTestSQL{markRow: func(args []any) pgx.Row {
		captured = args
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = "intent-1"
			*(dest[1].(*string)) = "user-1"
			*(dest[2].(*string)) = "pro"
			return nil
		})
	}}
	app := newBillingApp(db)
	body := []byte(`{"reference":"ref-1","status":"PAID"}`)

	req := httptest.NewRequest("POST", "/v1/billing/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature", signWebhook("hook-secret", body))
	rr := httptest.NewRecorder()
	app.BillingWebhook(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if captured[0] != "ref-1" || captured[1] != "PAID" {
		t.Fatalf("unexpected mark args: %#v", captured)
	}
}

func TestBillingWebhookPaidCarriesPlanQuotas(t *testing.T) {
	var captured []any
	db := &billingTestSQL{markRow: func(args []any) pgx.Row {
		captured = args
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = "intent-1"
			*(dest[1].(*string)) = "user-1"
			*(dest[2].(*string)) = "pro"
			return nil
		})
	}}
	app := newBillingApp(db)
	body := []byte(`{"reference":"ref-1","status":"PAID"}`)

	req := httptest.NewRequest("POST", "/v1/billing/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature", signWebhook("hook-secret", body))
	rr := httptest.NewRecorder()
	app.BillingWebhook(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if len(captured) != 3 {
		t.Fatalf("mark args = %d, want 3 (reference, status, quotas)", len(captured))
	}
	quotas := map[string]int{}
	if err := json.Unmarshal(captured[2].([]byte), &quotas); err != nil {
		t.Fatalf("decode quotas arg: %v", err)
	}
	if quotas["pro"] != 50 {
		t.Fatalf("pro quota = %d, want 50", quotas["pro"])
	}
	if quotas["free"] != freeQuotaDaily {
		t.Fatalf("free quota = %d, want %d", quotas["free"], freeQuotaDaily)
	}
}

func TestBillingWebhookUnknownReference(t *testing.T) {
	db := &billingTestSQL{markRow: func([]any) pgx.Row {
		return NewSimpleRow(nil)
	}}
	app := newBillingApp(db)
	body := []byte(`{"reference":"missing","status":"FAILED"}`)

	req := httptest.NewRequest("POST", "/v1/billing/webhook", bytes.NewReader(body))
	req.Header.Set("X-Signature", signWebhook("hook-secret", body))
	rr := httptest.NewRecorder()
	app.BillingWebhook(rr, req)

	if rr.Code != 404 {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
