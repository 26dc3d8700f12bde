package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/internal/utils"
)

// SurveyLister lists survey schemas; see service.SurveyService.
type SurveyLister interface {
	List(ctx context.Context) ([]models.Survey, error)
}

// ReportLister reads submitted reports; see repository.ReportRepository.
type ReportLister interface {
	ListBySurvey(ctx context.Context, surveyID string, limit, offset int) ([]models.Report, int, error)
	ListByPhone(ctx context.Context, phone string, limit int) ([]models.Report, error)
}

// AdminDeps groups the read-only stores behind the admin API.
type AdminDeps struct {
	Surveys       SurveyLister
	Reports       ReportLister
	Registrations conversation.RegistrationStore
	Sessions      conversation.SessionStore
	Places        conversation.Resolver
}

// AdminHandler handles read-only admin HTTP endpoints.
type AdminHandler struct {
	deps AdminDeps
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	return &AdminHandler{deps: deps}
}

const recentReportsLimit = 10

// ListSurveys handles GET /v1/admin/surveys
func (h *AdminHandler) ListSurveys(c *gin.Context) {
	surveys, err := h.deps.Surveys.List(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list surveys")
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve surveys")
		return
	}
	utils.Success(c, 200, "Surveys retrieved", surveys)
}

// ListReports handles GET /v1/admin/surveys/:id/reports
func (h *AdminHandler) ListReports(c *gin.Context) {
	page := utils.PageFromQuery(c)

	reports, total, err := h.deps.Reports.ListBySurvey(c.Request.Context(), c.Param("id"), page.Limit, page.Offset())
	if err != nil {
		log.Error().Err(err).Str("survey_id", c.Param("id")).Msg("Failed to list reports")
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve reports")
		return
	}
	utils.SuccessWithPagination(c, 200, "Reports retrieved", reports, page, total)
}

type registeredLocation struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Level    string `json:"level,omitempty"`
	Resolved bool   `json:"resolved"`
}

type sessionView struct {
	SurveyID        string              `json:"surveyId"`
	State           models.SessionState `json:"state"`
	LockedForReport bool                `json:"lockedForReport"`
	Draft           *models.ReportDraft `json:"draft,omitempty"`
}

// GetRegistration handles GET /v1/admin/registrations/:phone
func (h *AdminHandler) GetRegistration(c *gin.Context) {
	ctx := c.Request.Context()
	phone := c.Param("phone")

	codes, err := h.deps.Registrations.Get(ctx, phone)
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("Failed to load registration")
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve registration")
		return
	}

	locations := make([]registeredLocation, 0, len(codes))
	for _, code := range codes {
		item := registeredLocation{Code: code}
		if loc, err := h.deps.Places.Resolve(code); err == nil {
			item.Name = loc.Name
			item.Level = loc.Level
			item.Resolved = true
		}
		locations = append(locations, item)
	}

	surveys, err := h.deps.Surveys.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list surveys")
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve surveys")
		return
	}

	sessions := []sessionView{}
	for _, survey := range surveys {
		s, err := h.deps.Sessions.Get(ctx, phone, survey.ID)
		if errors.Is(err, conversation.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("phone", phone).Str("survey_id", survey.ID).Msg("Failed to load session")
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve sessions")
			return
		}
		sessions = append(sessions, sessionView{
			SurveyID:        s.SurveyID,
			State:           s.State,
			LockedForReport: s.LockedForReport,
			Draft:           s.Draft,
		})
	}

	reports, err := h.deps.Reports.ListByPhone(ctx, phone, recentReportsLimit)
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("Failed to list reports")
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve reports")
		return
	}

	utils.Success(c, 200, "Registration retrieved", gin.H{
		"phone":         phone,
		"locations":     locations,
		"sessions":      sessions,
		"recentReports": reports,
	})
}
