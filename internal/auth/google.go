package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"kakeibo/internal/log"
)

const (
	SessionCookie = "kakeibo_session"
	stateCookie   = "kakeibo_oauth_state"

	userInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// GoogleOptions configure the Google sign-in flow.
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// SecureCookies marks cookies Secure; set it when served over HTTPS.
	SecureCookies bool
}

// GoogleAuth signs users in with the OAuth2 authorization code flow and
// keeps them signed in with a session cookie. The OpenID "sub" claim is the
// subject that gets normalized into the user id.
type GoogleAuth struct {
	oauth       *oauth2.Config
	sessions    *SessionStore
	secure      bool
	userInfoURL string
	logger      *log.Logger
}

func NewGoogleAuth(opts GoogleOptions, sessions *SessionStore, logger *log.Logger) *GoogleAuth {
	if logger == nil {
		logger = log.Discard()
	}
	return &GoogleAuth{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  opts.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		sessions:    sessions,
		secure:      opts.SecureCookies,
		userInfoURL: userInfoURL,
		logger:      logger.WithComponent(log.ComponentAuth),
	}
}

// Login redirects to Google's consent page.
func (a *GoogleAuth) Login(w http.ResponseWriter, r *http.Request) {
	state, err := newToken()
	if err != nil {
		a.logger.ErrorContext(r.Context(), "Failed to create oauth state", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, a.oauth.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the code exchange and starts a session.
func (a *GoogleAuth) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if errStr := q.Get("error"); errStr != "" {
		http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		a.logger.WarnContext(ctx, "OAuth state mismatch")
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})

	token, err := a.oauth.Exchange(ctx, q.Get("code"))
	if err != nil {
		a.logger.ErrorContext(ctx, "Token exchange failed", log.FieldError, err)
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	u, err := a.fetchUser(ctx, token)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to read user info", log.FieldError, err)
		http.Error(w, "could not read user info", http.StatusBadGateway)
		return
	}

	sessionToken, sess, err := a.sessions.Create(u)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to create session", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sessionToken,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})

	a.logger.InfoContext(ctx, "User signed in", log.FieldUserID, u.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout ends the session.
func (a *GoogleAuth) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		a.sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (a *GoogleAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil {
			unauthorized(w)
			return
		}
		sess, err := a.sessions.Get(c.Value)
		if err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sess.User)))
	})
}

type userInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (a *GoogleAuth) fetchUser(ctx context.Context, token *oauth2.Token) (User, error) {
	client := a.oauth.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return User{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return User{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return User{}, errors.New("userinfo without sub claim")
	}
	return NewUser(info.Sub, info.Email, info.Name)
}
