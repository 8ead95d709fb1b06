package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/thishamdi/digital-store-api/internal/logger"
)

const (
	stateCookie = "oauth_state"
	nextCookie  = "oauth_next"

	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleOAuthHandler signs existing admins in through Google. The session
// cookies are the same ones password login sets.
type GoogleOAuthHandler struct {
	Auth            *AuthHandler
	OAuth           *oauth2.Config
	FrontendBaseURL string
	UserInfoURL     string
}

func NewGoogleOAuthHandler(auth *AuthHandler, clientID, secret, redirect, frontend string) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{
		Auth: auth,
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: secret,
			RedirectURL:  redirect,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		FrontendBaseURL: strings.TrimRight(frontend, "/"),
		UserInfoURL:     googleUserInfoURL,
	}
}

func randomState(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	st, err := randomState(32)
	if err != nil {
		return err
	}

	h.tempCookie(c, stateCookie, st, 10*60)
	h.tempCookie(c, nextCookie, safeNext(c.Query("next", "/")), 10*60)

	return c.Redirect(h.OAuth.AuthCodeURL(st), http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	expected := c.Cookies(stateCookie)
	next := safeNext(c.Cookies(nextCookie))

	h.tempCookie(c, stateCookie, "", -1)
	h.tempCookie(c, nextCookie, "", -1)

	if code == "" || state == "" || expected != state {
		return h.fail(c, "Invalid OAuth state")
	}

	gu, err := h.fetchUser(c, code)
	if err != nil {
		logger.WithCtx(c.UserContext()).Warn("google sign-in failed", "error", err)
		return h.fail(c, "Google sign-in failed")
	}

	sess, err := h.Auth.Accounts.GoogleLogin(c.UserContext(), gu.Email, gu.VerifiedEmail)
	if err != nil {
		return h.fail(c, err.Error())
	}

	h.Auth.setSession(c, sess.Tokens)
	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}

func (h *GoogleOAuthHandler) fetchUser(c *fiber.Ctx, code string) (*googleUserInfo, error) {
	ctx := c.UserContext()
	tok, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := h.OAuth.Client(ctx, tok).Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if gu.Email == "" {
		return nil, fmt.Errorf("userinfo without email")
	}
	return &gu, nil
}

func (h *GoogleOAuthHandler) fail(c *fiber.Ctx, msg string) error {
	return c.Redirect(h.FrontendBaseURL+"/login?error="+url.QueryEscape(msg), http.StatusTemporaryRedirect)
}

func (h *GoogleOAuthHandler) tempCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Auth.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// safeNext keeps redirects on the frontend: only absolute paths pass.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}
