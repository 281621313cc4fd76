/**
 * @description
 * HTTP handlers for the banking API. Handlers parse requests, resolve the
 * caller from the authenticated context, call the application service, and
 * map the domain error taxonomy onto HTTP statuses. They are the bridge
 * between the web layer and the business logic and contain no business
 * rules of their own.
 *
 * @dependencies
 * - internal/app, internal/domain, internal/store: service, models, errors.
 * - github.com/go-chi/chi/v5 (via router.go) for routing.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/corebank/banking-service/internal/app"
	"github.com/corebank/banking-service/internal/domain"
)

// Handlers holds the application service and HTTP-layer settings.
type Handlers struct {
	service     *app.Service
	tokenSecret string
	tokenTTL    time.Duration

	limiter        app.RateLimiter
	transferPerMin int
}

// NewHandlers creates the handler set. limiter may be nil to disable rate
// limiting.
func NewHandlers(service *app.Service, tokenSecret string, tokenTTL time.Duration, limiter app.RateLimiter, transferPerMin int) *Handlers {
	return &Handlers{
		service:        service,
		tokenSecret:    tokenSecret,
		tokenTTL:       tokenTTL,
		limiter:        limiter,
		transferPerMin: transferPerMin,
	}
}

type registerRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	NationalID string `json:"national_id"`
	Mobile     string `json:"mobile"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type transferRequest struct {
	TargetAccountNumber string `json:"target_account_number"`
	Amount              string `json:"amount"`
}

type beneficiaryRequest struct {
	Name                string `json:"name"`
	TargetAccountNumber string `json:"target_account_number"`
}

type issueCardRequest struct {
	Type string `json:"card_type"`
}

type changePINRequest struct {
	CardRef string `json:"card_ref"`
	NewPIN  string `json:"new_pin"`
}

type updateProfileRequest struct {
	FullName string `json:"full_name"`
	Address  string `json:"address"`
	Mobile   string `json:"mobile"`
}

type accountResponse struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	FullName      string    `json:"full_name"`
	Address       string    `json:"address"`
	NationalID    string    `json:"national_id"`
	Mobile        string    `json:"mobile"`
	AccountNumber string    `json:"account_number"`
	Balance       string    `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
}

type transactionResponse struct {
	ID           uuid.UUID `json:"id"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"`
	Counterparty string    `json:"counterparty_account_number"`
	CreatedAt    time.Time `json:"created_at"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Username:      a.Username,
		FullName:      a.FullName,
		Address:       a.Address,
		NationalID:    a.NationalID,
		Mobile:        a.Mobile,
		AccountNumber: a.AccountNumber,
		Balance:       domain.FormatAmount(a.Balance),
		CreatedAt:     a.CreatedAt,
	}
}

func toTransactionResponse(t domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		Kind:         string(t.Kind),
		Amount:       domain.FormatAmount(t.Amount),
		Counterparty: t.Counterparty,
		CreatedAt:    t.CreatedAt,
	}
}

// Register handles POST /register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/register"
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", r.Method, endpoint)
		return
	}

	account, err := h.service.Register(r.Context(), app.RegisterInput{
		Username: req.Username,
		Secret:   req.Password,
		Profile: domain.Profile{
			FullName:   req.FullName,
			Address:    req.Address,
			NationalID: req.NationalID,
			Mobile:     req.Mobile,
		},
	})
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusCreated, toAccountResponse(account), r.Method, endpoint)
}

// Login handles POST /login and returns a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/login"
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", r.Method, endpoint)
		return
	}

	account, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	token, err := NewAuthToken(h.tokenSecret, account.ID, h.tokenTTL)
	if err != nil {
		log.Printf("level=error component=http msg=\"token mint failed\" err=%v", err)
		h.respondError(w, http.StatusInternalServerError, "could not issue token", r.Method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	}, r.Method, endpoint)
}

// GetAccount handles GET /accounts/me.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/accounts/me"
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, toAccountResponse(account), r.Method, endpoint)
}

// UpdateAccount handles PATCH /accounts/me. Empty fields are untouched.
func (h *Handlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/accounts/me"
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", r.Method, endpoint)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), accountID, domain.ProfileUpdate{
		FullName: req.FullName,
		Address:  req.Address,
		Mobile:   req.Mobile,
	})
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"updated": updated}, r.Method, endpoint)
}

// ListTransactions handles GET /accounts/me/transactions.
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/accounts/me/transactions"
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	entries, err := h.service.ListTransactions(r.Context(), accountID)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	out := make([]transactionResponse, 0, len(entries))
	for _, t := range entries {
		out = append(out, toTransactionResponse(t))
	}
	h.respondJSON(w, http.StatusOK, out, r.Method, endpoint)
}

// Deposit handles POST /deposit.
func (h *Handlers) Deposit(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, "/deposit", false, h.service.Deposit)
}

// Withdraw handles POST /withdraw.
func (h *Handlers) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, "/withdraw", true, h.service.Withdraw)
}

func (h *Handlers) handleMovement(w http.ResponseWriter, r *http.Request, endpoint string, limited bool, op func(ctx context.Context, id uuid.UUID, amount int64) (*domain.Transaction, error)) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	if limited && !h.allowMovement(w, r, endpoint, accountID) {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", r.Method, endpoint)
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}

	entry, err := op(r.Context(), accountID, amount)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusCreated, toTransactionResponse(*entry), r.Method, endpoint)
}

// Transfer handles POST /transfer.
func (h *Handlers) Transfer(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/transfer"
	timer := prometheus.NewTimer(httpLatency.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	if !h.allowMovement(w, r, endpoint, accountID) {
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", r.Method, endpoint)
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}

	result, err := h.service.Transfer(r.Context(), accountID, req.TargetAccountNumber, amount)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	resp := map[string]any{
		"outgoing": toTransactionResponse(result.Outgoing),
		"internal": result.Internal,
	}
	if result.Incoming != nil {
		resp["incoming"] = toTransactionResponse(*result.Incoming)
	}
	h.respondJSON(w, http.StatusCreated, resp, r.Method, endpoint)
}

// allowMovement consults the rate limiter; it writes the 429 itself.
func (h *Handlers) allowMovement(w http.ResponseWriter, r *http.Request, endpoint string, accountID uuid.UUID) bool {
	if h.limiter == nil || h.transferPerMin <= 0 {
		return true
	}
	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), "transfer", accountID.String(), h.transferPerMin, time.Minute)
	if err != nil {
		// Limiter trouble must not block money movement.
		log.Printf("level=warn component=http msg=\"rate limiter unavailable\" err=%v", err)
		return true
	}
	if count > h.transferPerMin {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.respondError(w, http.StatusTooManyRequests, "rate limit exceeded", r.Method, endpoint)
		return false
	}
	return true
}

// CreateBeneficiary handles POST /beneficiaries.
func (h *Handlers) CreateBeneficiary(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/beneficiaries"
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	var req beneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", r.Method, endpoint)
		return
	}

	b, err := h.service.AddBeneficiary(r.Context(), accountID, req.Name, req.TargetAccountNumber)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusCreated, b, r.Method, endpoint)
}

// ListBeneficiaries handles GET /beneficiaries.
func (h *Handlers) ListBeneficiaries(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/beneficiaries"
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	out, err := h.service.ListBeneficiaries(r.Context(), accountID)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	if out == nil {
		out = []domain.Beneficiary{}
	}
	h.respondJSON(w, http.StatusOK, out, r.Method, endpoint)
}

// ListCards handles GET /cards.
func (h *Handlers) ListCards(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/cards"
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	cards, err := h.service.ListCards(r.Context(), accountID)
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	if cards == nil {
		cards = []domain.Card{}
	}
	h.respondJSON(w, http.StatusOK, cards, r.Method, endpoint)
}

// IssueCard handles POST /cards.
func (h *Handlers) IssueCard(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/cards"
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	var req issueCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", r.Method, endpoint)
		return
	}

	card, err := h.service.IssueCard(r.Context(), accountID, domain.CardType(req.Type))
	if err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusCreated, card, r.Method, endpoint)
}

// ChangePIN handles POST /cards/pin.
func (h *Handlers) ChangePIN(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/cards/pin"
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthenticated", r.Method, endpoint)
		return
	}
	var req changePINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body", r.Method, endpoint)
		return
	}

	if err := h.service.ChangePIN(r.Context(), accountID, req.CardRef, req.NewPIN); err != nil {
		h.respondDomainError(w, err, r.Method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"updated": true}, r.Method, endpoint)
}

// respondDomainError maps the error taxonomy onto HTTP statuses.
func (h *Handlers) respondDomainError(w http.ResponseWriter, err error, method, endpoint string) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTarget), errors.Is(err, domain.ErrInsufficientFunds):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrCardNotFound),
		errors.Is(err, domain.ErrBeneficiaryNotFound):
		h.respondError(w, http.StatusNotFound, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrDuplicateUsername), errors.Is(err, domain.ErrDuplicateBeneficiary),
		errors.Is(err, domain.ErrAmbiguousCard):
		h.respondError(w, http.StatusConflict, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.respondError(w, http.StatusUnauthorized, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrTransient):
		w.Header().Set("Retry-After", "1")
		h.respondError(w, http.StatusServiceUnavailable, "temporary storage contention, retry the request", method, endpoint)
	default:
		log.Printf("level=error component=http msg=\"unexpected error\" endpoint=%s err=%v", endpoint, err)
		h.respondError(w, http.StatusInternalServerError, "internal error", method, endpoint)
	}
}

// Helpers
func (h *Handlers) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handlers) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
