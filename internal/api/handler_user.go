package api

import (
	"errors"
	"net/http"

	"github.com/ccojocar/zxcvbn-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/stamon-dev/stamon/internal/model"
	"github.com/stamon-dev/stamon/internal/state"
)

// minPasswordScore is the zxcvbn score floor for new passwords.
const minPasswordScore = 2

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// HandleRegister creates a user account. While no account exists the
// endpoint is open and the first account becomes admin; afterwards it
// requires an authenticated admin.
func HandleRegister(users *state.UserRepo, auth *Authenticator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := users.Count()
		if err != nil {
			writeRepoError(w, err)
			return
		}
		if count > 0 {
			claims, err := validateRequest(auth, r)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "registration is closed")
				return
			}
			if claims.Role != model.RoleAdmin {
				WriteError(w, http.StatusForbidden, "FORBIDDEN", "admin role required")
				return
			}
		}

		var req registerRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if req.Username == "" || req.Password == "" {
			writeInvalidArgument(w, "username and password are required")
			return
		}
		if zxcvbn.PasswordStrength(req.Password, []string{req.Username}).Score < minPasswordScore {
			writeInvalidArgument(w, "password is too weak")
			return
		}

		role := model.UserRole(req.Role)
		if count == 0 {
			role = model.RoleAdmin
		} else if role == "" {
			role = model.RoleViewer
		} else if role != model.RoleAdmin && role != model.RoleViewer {
			writeInvalidArgument(w, "role: must be admin or viewer")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		user := model.User{
			Username: req.Username,
			Password: string(hash),
			Role:     role,
			Active:   true,
			Timezone: req.Timezone,
		}
		id, err := users.Insert(user)
		if err != nil {
			if errors.Is(err, state.ErrConflict) {
				WriteError(w, http.StatusConflict, "CONFLICT", "username already taken")
				return
			}
			writeRepoError(w, err)
			return
		}
		user.ID = id

		token, err := auth.Issue(user)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
	})
}

// validateRequest authenticates an unwrapped request; used by /register,
// which sits outside AuthMiddleware so first-run can reach it.
func validateRequest(auth *Authenticator, r *http.Request) (*Claims, error) {
	token := requestToken(r)
	if token == "" {
		return nil, errors.New("missing credentials")
	}
	return auth.Validate(token)
}

// HandleLogin verifies credentials and issues a session token.
func HandleLogin(users *state.UserRepo, auth *Authenticator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}

		user, err := users.GetByUsername(req.Username)
		if err != nil {
			// Same response as a bad password: no username probing.
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
			return
		}
		if !user.Active {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "account disabled")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
			return
		}

		token, err := auth.Issue(user)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     tokenCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(TokenTTL.Seconds()),
		})
		WriteJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
	})
}

// HandleMe returns the authenticated user.
func HandleMe(users *state.UserRepo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := CurrentUser(r)
		if !ok {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credentials")
			return
		}
		user, err := users.Get(claims.UserID)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, user)
	})
}
