package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/models"
	mw "github.com/trackline/trackline/services/api/middleware"
	"github.com/trackline/trackline/services/api/render"
)

const bcryptCost = 8

// UsersResource handles registration and session management.
type UsersResource struct {
	DB   *sqlx.DB
	Auth *mw.Auth
}

func NewUsersResource(db *sqlx.DB, auth *mw.Auth) *UsersResource {
	return &UsersResource{DB: db, Auth: auth}
}

// Routes: registration and login are public; profile and logout require a
// session token.
func (rs *UsersResource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", rs.Register)
	r.Post("/login", rs.Login)

	r.Group(func(r chi.Router) {
		r.Use(rs.Auth.Middleware)
		r.Get("/me", rs.Profile)
		r.Post("/logout", rs.Logout)
	})
	return r
}

// Register POST /api/v1/users
func (rs *UsersResource) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		CompanyID string `json:"company_id"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Role      string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Registration failed", "Invalid request body"))
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" || input.Email == "" {
		render.Err(w, r, apperr.NewInvalidInput("Registration failed", "Name and email are required"))
		return
	}
	if len(input.Password) < 8 {
		render.Err(w, r, apperr.NewInvalidInput("Registration failed",
			"Password must be at least 8 characters"))
		return
	}
	if input.Role == "" {
		input.Role = models.RoleDeveloper
	}
	if !models.ValidRole(input.Role) {
		render.Err(w, r, apperr.NewInvalidInput("Registration failed",
			"Role must be one of developer, tester, manager, admin"))
		return
	}

	companyID, err := uuid.Parse(input.CompanyID)
	if err != nil {
		render.Err(w, r, apperr.NewNotFound("Company not found", "The specified company does not exist"))
		return
	}
	var exists bool
	if err := rs.DB.GetContext(r.Context(), &exists,
		`SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`, companyID); err != nil {
		render.Err(w, r, err)
		return
	}
	if !exists {
		render.Err(w, r, apperr.NewNotFound("Company not found", "The specified company does not exist"))
		return
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		render.Err(w, r, apperr.NewInternal("Registration failed", "could not hash password", err))
		return
	}

	var user models.User
	err = rs.DB.GetContext(r.Context(), &user, `
		INSERT INTO users (company_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`,
		companyID, input.Name, input.Email, hash, input.Role)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			render.Err(w, r, apperr.NewConflict("Duplicate user",
				"A user with this email already exists"))
			return
		}
		render.Err(w, r, apperr.NewInternal("Registration failed", "could not create user", err))
		return
	}

	token, err := rs.Auth.Sign(r.Context(), user.ID)
	if err != nil {
		render.Err(w, r, apperr.NewInternal("Registration failed", "could not issue token", err))
		return
	}

	render.Created(w, r, "User registered", "User has been registered successfully", nil,
		map[string]interface{}{"user": user, "token": token})
}

// Login POST /api/v1/users/login
func (rs *UsersResource) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Login failed", "Invalid request body"))
		return
	}

	// One failure message for both unknown email and wrong password.
	failed := apperr.NewInvalidInput("Login failed", "Unable to login")

	var user models.User
	err := rs.DB.GetContext(r.Context(), &user,
		`SELECT * FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(input.Email)))
	if errors.Is(err, sql.ErrNoRows) {
		render.Err(w, r, failed)
		return
	}
	if err != nil {
		render.Err(w, r, err)
		return
	}

	if !CheckPassword(user.PasswordHash, input.Password) {
		render.Err(w, r, failed)
		return
	}

	token, err := rs.Auth.Sign(r.Context(), user.ID)
	if err != nil {
		render.Err(w, r, apperr.NewInternal("Login failed", "could not issue token", err))
		return
	}

	render.OK(w, r, "Login successful", "Logged in successfully", nil,
		map[string]interface{}{"user": user, "token": token})
}

// Profile GET /api/v1/users/me
func (rs *UsersResource) Profile(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())

	var user models.User
	err := rs.DB.GetContext(r.Context(), &user, `SELECT * FROM users WHERE id = $1`, actor.ID)
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Profile retrieved", "Profile retrieved successfully", nil, user)
}

// Logout POST /api/v1/users/logout
func (rs *UsersResource) Logout(w http.ResponseWriter, r *http.Request) {
	actor, _ := mw.ActorFromContext(r.Context())
	token, _ := mw.TokenFromContext(r.Context())

	if err := rs.Auth.Revoke(r.Context(), actor.ID, token); err != nil {
		render.Err(w, r, apperr.NewInternal("Logout failed", "could not revoke token", err))
		return
	}
	render.OK(w, r, "Logged out", "Logged out successfully", nil, nil)
}
