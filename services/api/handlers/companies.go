package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/trackline/trackline/pkg/apperr"
	"github.com/trackline/trackline/pkg/models"
	"github.com/trackline/trackline/services/api/render"
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// CompaniesResource handles company signup and lookup.
type CompaniesResource struct {
	DB *sqlx.DB
}

func NewCompaniesResource(db *sqlx.DB) *CompaniesResource {
	return &CompaniesResource{DB: db}
}

// Routes for public company endpoints.
func (rs *CompaniesResource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", rs.CreateCompany)
	r.Get("/code/{code}", rs.GetCompanyByCode)
	r.Get("/{id}", rs.GetCompany)
	return r
}

// CreateCompany POST /api/v1/companies
func (rs *CompaniesResource) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		render.Err(w, r, apperr.NewInvalidInput("Company creation failed", "Invalid request body"))
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" || input.Email == "" {
		render.Err(w, r, apperr.NewInvalidInput("Company creation failed", "Name and email are required"))
		return
	}
	if !emailPattern.MatchString(input.Email) {
		render.Err(w, r, apperr.NewInvalidInput("Company creation failed",
			input.Email+" is not a valid email address"))
		return
	}

	// The generated join code can collide; regenerate and retry when the
	// unique index rejects it.
	var company models.Company
	for attempt := 0; attempt < 5; attempt++ {
		err := rs.DB.GetContext(r.Context(), &company, `
			INSERT INTO companies (name, email, company_code)
			VALUES ($1, $2, $3)
			RETURNING *`,
			input.Name, input.Email, models.GenerateCompanyCode())
		if err == nil {
			render.Created(w, r, "Company created", "Company has been created successfully",
				map[string]interface{}{"company_code": company.CompanyCode}, company)
			return
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "company_code") {
				continue
			}
			render.Err(w, r, apperr.NewConflict("Duplicate company",
				"A company with this email already exists"))
			return
		}
		render.Err(w, r, apperr.NewInternal("Company creation failed", "could not create company", err))
		return
	}
	render.Err(w, r, apperr.NewInternal("Company creation failed",
		"could not allocate a unique company code", nil))
}

// GetCompany GET /api/v1/companies/{id}
func (rs *CompaniesResource) GetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Err(w, r, apperr.NewNotFound("Company not found", "The requested company does not exist"))
		return
	}

	var company models.Company
	err = rs.DB.GetContext(r.Context(), &company, `SELECT * FROM companies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		render.Err(w, r, apperr.NewNotFound("Company not found", "The requested company does not exist"))
		return
	}
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Company retrieved", "Company details retrieved successfully", nil, company)
}

// GetCompanyByCode GET /api/v1/companies/code/{code}
func (rs *CompaniesResource) GetCompanyByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var company models.Company
	err := rs.DB.GetContext(r.Context(), &company,
		`SELECT * FROM companies WHERE company_code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		render.Err(w, r, apperr.NewNotFound("Company not found", "The requested company does not exist"))
		return
	}
	if err != nil {
		render.Err(w, r, err)
		return
	}
	render.OK(w, r, "Company retrieved", "Company details retrieved successfully", nil, company)
}
