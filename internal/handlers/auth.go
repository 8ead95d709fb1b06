package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/thishamdi/digital-store-api/internal/apperr"
	"github.com/thishamdi/digital-store-api/internal/middleware"
	"github.com/thishamdi/digital-store-api/internal/services/account"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

const RefreshCookie = "refreshToken"

var errBadBody = apperr.BadRequest("Invalid request body")

type AuthHandler struct {
	Accounts *account.AccountService
	// Secure marks session cookies Secure; on in production.
	Secure bool
}

func NewAuthHandler(accounts *account.AccountService, secure bool) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Secure: secure}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req account.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	sess, err := h.Accounts.Register(c.UserContext(), req)
	if err != nil {
		return err
	}

	h.setSession(c, sess.Tokens)
	return utils.Created(c, "User registered successfully", sessionBody(sess))
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req account.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	sess, err := h.Accounts.Login(c.UserContext(), req)
	if err != nil {
		return err
	}

	h.setSession(c, sess.Tokens)
	return utils.OK(c, "Login successful", sessionBody(sess))
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return apperr.Unauthorized("Unauthorized request")
	}
	if err := h.Accounts.Logout(c.UserContext(), u.ID); err != nil {
		return err
	}

	h.clearSession(c)
	return utils.OK(c, "Logged out successfully", nil)
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken accepts the refresh token from its cookie or from the body.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	token := c.Cookies(RefreshCookie)
	if token == "" && len(c.Body()) > 0 {
		var req refreshReq
		if err := c.BodyParser(&req); err != nil {
			return errBadBody
		}
		token = req.RefreshToken
	}

	sess, err := h.Accounts.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}

	h.setSession(c, sess.Tokens)
	return utils.OK(c, "Access token refreshed", fiber.Map{
		"accessToken":  sess.Tokens.AccessToken,
		"refreshToken": sess.Tokens.RefreshToken,
	})
}

type forgotReq struct {
	Email string `json:"email"`
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotReq
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}
	if err := h.Accounts.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return utils.OK(c, "If an account exists for this email, an OTP has been sent", nil)
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req account.ResetInput
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}
	if err := h.Accounts.ResetPassword(c.UserContext(), req); err != nil {
		return err
	}

	h.clearSession(c)
	return utils.OK(c, "Password reset successfully", nil)
}

func (h *AuthHandler) SendVerification(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.Accounts.SendVerification(c.UserContext(), uid); err != nil {
		return err
	}
	return utils.OK(c, "Verification OTP sent to your email", nil)
}

type verifyReq struct {
	OTP string `json:"otp"`
}

func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req verifyReq
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}
	if err := h.Accounts.VerifyEmail(c.UserContext(), uid, req.OTP); err != nil {
		return err
	}
	return utils.OK(c, "Email verified successfully", nil)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return apperr.Unauthorized("Unauthorized request")
	}
	return utils.OK(c, "Current user fetched", fiber.Map{"user": u})
}

func (h *AuthHandler) setSession(c *fiber.Ctx, pair utils.TokenPair) {
	h.cookie(c, middleware.AccessCookie, pair.AccessToken, h.Accounts.Tokens.AccessTTL())
	h.cookie(c, RefreshCookie, pair.RefreshToken, h.Accounts.Tokens.RefreshTTL())
}

func (h *AuthHandler) clearSession(c *fiber.Ctx) {
	h.cookie(c, middleware.AccessCookie, "", -1)
	h.cookie(c, RefreshCookie, "", -1)
}

// cookie writes an httpOnly strict cookie. A negative ttl deletes it.
func (h *AuthHandler) cookie(c *fiber.Ctx, name, value string, ttl time.Duration) {
	ck := &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Secure,
		SameSite: fiber.CookieSameSiteStrictMode,
		MaxAge:   int(ttl / time.Second),
	}
	if ttl < 0 {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
	}
	c.Cookie(ck)
}

func sessionBody(sess *account.Session) fiber.Map {
	return fiber.Map{
		"user":         sess.User,
		"accessToken":  sess.Tokens.AccessToken,
		"refreshToken": sess.Tokens.RefreshToken,
	}
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := c.Locals("userId").(string)
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("Unauthorized request")
	}
	return id, nil
}
