package api

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/genai-cost-planner/genai-cost-planner/internal/logging"
	"github.com/genai-cost-planner/genai-cost-planner/internal/storage"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// validNameRegex restricts preset and profile names to URL-safe identifiers
var validNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// SavePresetRequest is the body of PUT /presets/:name
type SavePresetRequest struct {
	Params models.Params `json:"params"`
}

// SaveProfileRequest is the body of PUT /profiles/:name
type SaveProfileRequest struct {
	PricePer1KInput     float64 `json:"price_per_1k_input" binding:"gte=0"`
	PricePer1KOutput    float64 `json:"price_per_1k_output" binding:"gte=0"`
	PrefillTokensPerSec float64 `json:"prefill_tokens_per_sec" binding:"gt=0"`
	DecodeTokensPerSec  float64 `json:"decode_tokens_per_sec" binding:"gt=0"`
}

// ApplyProfileResponse is the result of applying a profile to Params
type ApplyProfileResponse struct {
	Profile string        `json:"profile"` // Profile actually used, "default" on a miss
	Params  models.Params `json:"params"`
}

func (s *Server) validName(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if !validNameRegex.MatchString(name) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "name must be 1-64 characters of letters, digits, '.', '_' or '-'",
			RequestID: c.GetString("request_id"),
		})
		return "", false
	}
	return name, true
}

// Presets

func (s *Server) handleListPresets(c *gin.Context) {
	list, err := s.presets.List(c.Request.Context())
	if err != nil {
		s.internalError(c, "failed to list presets", err)
		return
	}
	if list == nil {
		list = []*models.Preset{}
	}

	c.JSON(http.StatusOK, gin.H{
		"presets": list,
		"count":   len(list),
	})
}

func (s *Server) handleGetPreset(c *gin.Context) {
	preset, err := s.presets.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.storageError(c, "failed to get preset", err)
		return
	}
	c.JSON(http.StatusOK, preset)
}

func (s *Server) handleSavePreset(c *gin.Context) {
	name, ok := s.validName(c)
	if !ok {
		return
	}

	var req SavePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	preset := &models.Preset{Name: name, Params: req.Params}
	if err := s.presets.Save(ctx, preset); err != nil {
		s.internalError(c, "failed to save preset", err)
		return
	}

	logging.Audit(ctx, "preset_saved", "name", name, "built_in", preset.BuiltIn)
	c.JSON(http.StatusOK, preset)
}

func (s *Server) handleDeletePreset(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	if err := s.presets.Delete(ctx, name); err != nil {
		s.storageError(c, "failed to delete preset", err)
		return
	}

	logging.Audit(ctx, "preset_deleted", "name", name)
	c.Status(http.StatusNoContent)
}

// Pricing profiles

func (s *Server) handleListProfiles(c *gin.Context) {
	list, err := s.profiles.List(c.Request.Context())
	if err != nil {
		s.internalError(c, "failed to list pricing profiles", err)
		return
	}
	if list == nil {
		list = []*models.PricingProfile{}
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": list,
		"count":    len(list),
	})
}

func (s *Server) handleGetProfile(c *gin.Context) {
	profile, err := s.profiles.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.storageError(c, "failed to get pricing profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleSaveProfile(c *gin.Context) {
	name, ok := s.validName(c)
	if !ok {
		return
	}

	var req SaveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	profile := &models.PricingProfile{
		Name:                name,
		PricePer1KInput:     req.PricePer1KInput,
		PricePer1KOutput:    req.PricePer1KOutput,
		PrefillTokensPerSec: req.PrefillTokensPerSec,
		DecodeTokensPerSec:  req.DecodeTokensPerSec,
	}
	if err := s.profiles.Save(ctx, profile); err != nil {
		s.internalError(c, "failed to save pricing profile", err)
		return
	}

	logging.Audit(ctx, "profile_saved", "name", name)
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")

	if err := s.profiles.Delete(ctx, name); err != nil {
		s.storageError(c, "failed to delete pricing profile", err)
		return
	}

	logging.Audit(ctx, "profile_deleted", "name", name)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleApplyProfile(c *gin.Context) {
	var p models.Params
	if err := c.ShouldBindJSON(&p); err != nil {
		s.badRequest(c, err)
		return
	}

	profile, err := s.profiles.GetOrDefault(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.internalError(c, "failed to load pricing profile", err)
		return
	}

	c.JSON(http.StatusOK, ApplyProfileResponse{
		Profile: profile.Name,
		Params:  profile.Apply(p),
	})
}

// applyProfile overlays a named profile for ?profile= on plan requests.
// Unlike the apply endpoint an unknown name is an error here, so a typo
// does not silently price a plan with the default.
func (s *Server) applyProfile(c *gin.Context, name string, p models.Params) (models.Params, bool) {
	if s.profiles == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "pricing profiles are not available",
			RequestID: c.GetString("request_id"),
		})
		return p, false
	}

	profile, err := s.profiles.Get(c.Request.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "unknown pricing profile: " + name,
			RequestID: c.GetString("request_id"),
		})
		return p, false
	}
	if err != nil {
		s.internalError(c, "failed to load pricing profile", err)
		return p, false
	}
	return profile.Apply(p), true
}
