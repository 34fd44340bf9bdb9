package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"

	"github.com/google/uuid"
)

type checkoutRequest struct {
	Plan     string `json:"plan"`
	Currency string `json:"currency"`
}

type planDTO struct {
	Plan       string `json:"plan"`
	AmountInt  int64  `json:"amount_int"`
	Currency   string `json:"currency"`
	QuotaDaily int    `json:"quota_daily"`
}

// freeQuotaDaily is the allowance every new account starts with.
const freeQuotaDaily = 2

// Plan pricing is static for now; a catalog table can replace this when more
// tiers land.
var planCatalog = map[string]planDTO{
	string(domain.UserPlanPro): {Plan: string(domain.UserPlanPro), AmountInt: 9900, Currency: "USD", QuotaDaily: 50},
}

// planQuotasJSON maps plan names to daily quotas for the webhook statement so
// a paid upgrade lands the new quota atomically with the plan column.
func planQuotasJSON() []byte {
	quotas := map[string]int{string(domain.UserPlanFree): freeQuotaDaily}
	for name, p := range planCatalog {
		quotas[name] = p.QuotaDaily
	}
	encoded, _ := json.Marshal(quotas)
	return encoded
}

func (a *App) BillingPlans(w http.ResponseWriter, r *http.Request) {
	items := []planDTO{
		{Plan: string(domain.UserPlanFree), AmountInt: 0, Currency: "USD", QuotaDaily: freeQuotaDaily},
	}
	for _, p := range planCatalog {
		items = append(items, p)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CheckoutCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	plan, ok := planCatalog[strings.ToLower(strings.TrimSpace(req.Plan))]
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown plan")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = plan.Currency
	}
	reference := uuid.NewString()
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertCheckoutIntent, userID, plan.Plan, plan.AmountInt, currency, reference)
	var intentID string
	if err := row.Scan(&intentID); err != nil {
		a.Logger.Error().Err(err).Msg("create checkout intent failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create checkout")
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"id":         intentID,
		"reference":  reference,
		"plan":       plan.Plan,
		"amount_int": plan.AmountInt,
		"currency":   currency,
		"status":     string(domain.CheckoutStatusPending),
	})
}

type webhookPayload struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// BillingWebhook consumes the payment provider's confirmation callback. The
// payload is authenticated with an HMAC signature over the raw body.
func (a *App) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, 1<<16)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable payload")
		return
	}
	if !verifyWebhookSignature(a.Config.BillingWebhookSecret, body, r.Header.Get("X-Signature")) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
		return
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	status := domain.CheckoutStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
	if status != domain.CheckoutStatusPaid && status != domain.CheckoutStatusFailed {
		a.error(w, http.StatusBadRequest, "bad_request", "status must be PAID or FAILED")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QMarkCheckoutByReference, payload.Reference, string(status), planQuotasJSON())
	var intentID, payerID, plan string
	if err := row.Scan(&intentID, &payerID, &plan); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "unknown reference")
			return
		}
		a.Logger.Error().Err(err).Msg("mark checkout failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update checkout")
		return
	}
	a.Logger.Info().Str("intent_id", intentID).Str("user_id", payerID).Str("status", string(status)).Msg("checkout resolved")
	a.json(w, http.StatusOK, map[string]any{"id": intentID, "status": string(status), "plan": plan})
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, limit))
}

func verifyWebhookSignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
