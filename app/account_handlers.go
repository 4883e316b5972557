package chatapp

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ngophuc29/sockettuBuild/core"
	"github.com/ngophuc29/sockettuBuild/pkg/router"
)

// AccountHandler serves the account HTTP surface: two-step registration with
// an emailed one-time code, login, password recovery and profile reads.
type AccountHandler struct {
	accounts core.AccountStore
	otps     core.OTPStore
	mailer   Mailer
	secret   []byte
	tokenTTL time.Duration
	otpTTL   time.Duration
}

func NewAccountHandler(accounts core.AccountStore, otps core.OTPStore, mailer Mailer, secret []byte, tokenTTL, otpTTL time.Duration) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		otps:     otps,
		mailer:   mailer,
		secret:   secret,
		tokenTTL: tokenTTL,
		otpTTL:   otpTTL,
	}
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return router.NewError(http.StatusBadRequest, "malformed request body")
	}
	return nil
}

func encodeBody(w http.ResponseWriter, code int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

type requestOTPPayload struct {
	Email string `json:"email"`
}

// RequestOTPHandler is registration step one: issue a one-time code to an
// email address not yet bound to an account.
func (h *AccountHandler) RequestOTPHandler(w http.ResponseWriter, r *http.Request) error {
	var payload requestOTPPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	if payload.Email == "" {
		return router.NewError(http.StatusBadRequest, "email is required")
	}

	taken, err := h.accounts.EmailExists(r.Context(), payload.Email)
	if err != nil {
		return err
	}
	if taken {
		return router.NewError(http.StatusConflict, "email is already registered")
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	if err := h.otps.CreateOTP(r.Context(), payload.Email, code, h.otpTTL); err != nil {
		return err
	}
	if err := h.mailer.SendOTP(r.Context(), payload.Email, code); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return encodeBody(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

type registerPayload struct {
	core.Account
	OTP string `json:"otp"`
}

// RegisterHandler is registration step two: the submitted code must match the
// one issued for the account's email.
func (h *AccountHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) error {
	var payload registerPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	if payload.Email == "" {
		return router.NewError(http.StatusBadRequest, "email is required")
	}
	if err := payload.Account.Validate(); err != nil {
		return router.NewError(http.StatusBadRequest, FormatValidationErrors(err))
	}
	if err := h.otps.ConsumeOTP(r.Context(), payload.Email, payload.OTP); err != nil {
		return err
	}
	if err := h.accounts.CreateAccount(r.Context(), payload.Account); err != nil {
		return err
	}

	profile, err := h.accounts.GetAccountByUsername(r.Context(), payload.Username)
	if err != nil {
		return err
	}
	return encodeBody(w, http.StatusCreated, profile)
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
	Account   *core.AccountProfile `json:"account"`
}

func (h *AccountHandler) LoginHandler(w http.ResponseWriter, r *http.Request) error {
	var payload loginPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}

	ok, err := h.accounts.ComparePassword(r.Context(), payload.Username, payload.Password)
	if err != nil && !errors.Is(err, core.ErrAccountNotFound) {
		return err
	}
	if !ok {
		return router.NewError(http.StatusUnauthorized, "invalid username or password")
	}

	token, expiresAt, err := core.NewToken(payload.Username, h.tokenTTL, h.secret)
	if err != nil {
		return err
	}
	profile, err := h.accounts.GetAccountByUsername(r.Context(), payload.Username)
	if err != nil {
		return err
	}
	return encodeBody(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   profile,
	})
}

type forgotPasswordPayload struct {
	Email string `json:"email"`
}

// ForgotPasswordHandler issues a one-time code to an email that owns an
// account. The response does not reveal whether the email is registered.
func (h *AccountHandler) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) error {
	var payload forgotPasswordPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}

	account, err := h.accounts.GetAccountByEmail(r.Context(), payload.Email)
	if err != nil {
		return err
	}
	if account != nil {
		code, err := generateOTP()
		if err != nil {
			return err
		}
		if err := h.otps.CreateOTP(r.Context(), payload.Email, code, h.otpTTL); err != nil {
			return err
		}
		if err := h.mailer.SendOTP(r.Context(), payload.Email, code); err != nil {
			return fmt.Errorf("send otp: %w", err)
		}
	}
	return encodeBody(w, http.StatusOK, map[string]string{"message": "if the email is registered a code has been sent"})
}

type resetPasswordPayload struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (h *AccountHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) error {
	var payload resetPasswordPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	if len(payload.NewPassword) < 6 {
		return router.NewError(http.StatusBadRequest, "password must be at least 6 characters")
	}
	if err := h.otps.ConsumeOTP(r.Context(), payload.Email, payload.OTP); err != nil {
		return err
	}
	if err := h.accounts.UpdatePassword(r.Context(), payload.Email, payload.NewPassword); err != nil {
		return err
	}
	return encodeBody(w, http.StatusOK, map[string]string{"message": "password updated"})
}

type changePasswordPayload struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *AccountHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) error {
	claims := ClaimsFromRequest(r)
	var payload changePasswordPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	if len(payload.NewPassword) < 6 {
		return router.NewError(http.StatusBadRequest, "password must be at least 6 characters")
	}

	ok, err := h.accounts.ComparePassword(r.Context(), claims.Username, payload.OldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return router.NewError(http.StatusUnauthorized, "wrong password")
	}
	if err := h.accounts.ChangePassword(r.Context(), claims.Username, payload.NewPassword); err != nil {
		return err
	}
	return encodeBody(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *AccountHandler) MeHandler(w http.ResponseWriter, r *http.Request) error {
	claims := ClaimsFromRequest(r)
	profile, err := h.accounts.GetAccountByUsername(r.Context(), claims.Username)
	if err != nil {
		return err
	}
	if profile == nil {
		return router.NewError(http.StatusNotFound, "account not found")
	}
	return encodeBody(w, http.StatusOK, profile)
}

func (h *AccountHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) error {
	claims := ClaimsFromRequest(r)
	var update core.ProfileUpdate
	if err := decodeBody(r, &update); err != nil {
		return err
	}
	profile, err := h.accounts.UpdateProfile(r.Context(), claims.Username, update)
	if err != nil {
		return err
	}
	return encodeBody(w, http.StatusOK, profile)
}

func (h *AccountHandler) GetAccountHandler(w http.ResponseWriter, r *http.Request) error {
	username := chi.URLParam(r, "username")
	profile, err := h.accounts.GetAccountByUsername(r.Context(), username)
	if err != nil {
		return err
	}
	if profile == nil {
		return router.NewError(http.StatusNotFound, "account not found")
	}
	return encodeBody(w, http.StatusOK, profile)
}

type availabilityResponse struct {
	UsernameTaken bool `json:"usernameTaken"`
	EmailTaken    bool `json:"emailTaken"`
	PhoneTaken    bool `json:"phoneTaken"`
}

// AvailabilityHandler supports the registration form's live checks. Empty
// query parameters report as not taken.
func (h *AccountHandler) AvailabilityHandler(w http.ResponseWriter, r *http.Request) error {
	var res availabilityResponse
	var err error

	if username := r.URL.Query().Get("username"); username != "" {
		if res.UsernameTaken, err = h.accounts.UsernameExists(r.Context(), username); err != nil {
			return err
		}
	}
	if email := r.URL.Query().Get("email"); email != "" {
		if res.EmailTaken, err = h.accounts.EmailExists(r.Context(), email); err != nil {
			return err
		}
	}
	if phone := r.URL.Query().Get("phone"); phone != "" {
		if res.PhoneTaken, err = h.accounts.PhoneExists(r.Context(), phone); err != nil {
			return err
		}
	}
	return encodeBody(w, http.StatusOK, res)
}
