package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ksenkov/walletcore/internal/domain"
)

// LedgerService is the transfer/withdraw engine consumed by the handlers.
type LedgerService interface {
	Transfer(ctx context.Context, callerID int64, req domain.TransferRequest, idemKey, reqHash string) (*domain.TransferResult, *domain.IdempotencyRecord, error)
	Withdraw(ctx context.Context, callerID int64, req domain.WithdrawRequest, idemKey, reqHash string) (*domain.WithdrawResult, *domain.IdempotencyRecord, error)
}

// Directory serves the read-side account and history endpoints.
type Directory interface {
	AccountsForUser(ctx context.Context, userID int64) ([]domain.Account, error)
	TransactionsForUser(ctx context.Context, userID int64) ([]domain.AccountHistory, error)
}

// Authenticator issues and verifies caller tokens.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Verify(token string) (int64, error)
}

type Handler struct {
	svc  LedgerService
	dir  Directory
	auth Authenticator
	log  *zap.Logger
}

func NewHandler(svc LedgerService, dir Directory, auth Authenticator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, dir: dir, auth: auth, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.log.Error("login failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "Login successful", "token": token})
}

func (h *Handler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownPathUser(w, r)
	if !ok {
		return
	}

	accounts, err := h.dir.AccountsForUser(r.Context(), userID)
	if err != nil {
		h.log.Error("accounts lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, accounts)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownPathUser(w, r)
	if !ok {
		return
	}

	histories, err := h.dir.TransactionsForUser(r.Context(), userID)
	if err != nil {
		h.log.Error("history lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, histories)
}

// ownPathUser parses the {userID} path variable and rejects callers asking
// for someone else's data.
func (h *Handler) ownPathUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(mux.Vars(r)["userID"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	if callerFrom(r.Context()) != userID {
		respondWithError(w, http.StatusForbidden, "You are not authorized to access this route")
		return 0, false
	}
	return userID, true
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	body, idemKey, reqHash, ok := readPayload(w, r)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	result, replay, err := h.svc.Transfer(r.Context(), callerFrom(r.Context()), req, idemKey, reqHash)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if replay != nil {
		writeReplay(w, replay)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	body, idemKey, reqHash, ok := readPayload(w, r)
	if !ok {
		return
	}

	var req domain.WithdrawRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	result, replay, err := h.svc.Withdraw(r.Context(), callerFrom(r.Context()), req, idemKey, reqHash)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if replay != nil {
		writeReplay(w, replay)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// readPayload consumes the body, hashes it for idempotency matching, and
// returns the optional Idempotency-Key header.
func readPayload(w http.ResponseWriter, r *http.Request) (body []byte, idemKey, reqHash string, ok bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Stream read error")
		return nil, "", "", false
	}
	idemKey = r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		sum := sha256.Sum256(body)
		reqHash = hex.EncodeToString(sum[:])
	}
	return body, idemKey, reqHash, true
}

func writeReplay(w http.ResponseWriter, rec *domain.IdempotencyRecord) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rec.ResponseStatus)
	w.Write(rec.ResponseBody)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(w, http.StatusForbidden, "You are not authorized to access this route")
	case errors.Is(err, domain.ErrAccountNotFound):
		respondWithError(w, http.StatusBadRequest, "Account does not exist")
	case errors.Is(err, domain.ErrInvalidAmount):
		respondWithError(w, http.StatusBadRequest, "Positive amount required")
	case errors.Is(err, domain.ErrInsufficientFunds):
		respondWithError(w, http.StatusBadRequest, "Insufficient funds in the requested currency")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		respondWithError(w, http.StatusConflict, "Concurrent update conflict, retry the request")
	case errors.Is(err, domain.ErrIdempotencyConflict):
		respondWithError(w, http.StatusConflict, "Request processing in progress")
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		respondWithError(w, http.StatusUnprocessableEntity, "Key reuse with mismatched payload")
	default:
		h.log.Error("operation failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
