package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/baller70/bookmarkaihub-sub004/internal/models"
	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
	"github.com/baller70/bookmarkaihub-sub004/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PolicyRepository persists policy overrides.
type PolicyRepository interface {
	Upsert(ctx context.Context, p *models.RateLimitPolicy) error
	Delete(ctx context.Context, class ratelimit.EndpointClass) (bool, error)
	Policies(ctx context.Context) (ratelimit.Policies, []string, error)
}

// RateLimitAdminHandler exposes the policy table to operators.
type RateLimitAdminHandler struct {
	limiter *ratelimit.Limiter
	base    ratelimit.Policies
	repo    PolicyRepository
	log     *zap.Logger

	// overrides is used instead of repo when no database is configured.
	mu        sync.Mutex
	overrides ratelimit.Policies
}

// RateLimitAdminOption configures a RateLimitAdminHandler.
type RateLimitAdminOption func(*RateLimitAdminHandler)

// WithPolicyRepository persists overrides instead of keeping them in memory.
func WithPolicyRepository(repo PolicyRepository) RateLimitAdminOption {
	return func(h *RateLimitAdminHandler) { h.repo = repo }
}

// NewRateLimitAdminHandler creates the handler. base is the table overrides apply to.
func NewRateLimitAdminHandler(limiter *ratelimit.Limiter, base ratelimit.Policies, log *zap.Logger, opts ...RateLimitAdminOption) *RateLimitAdminHandler {
	h := &RateLimitAdminHandler{
		limiter:   limiter,
		base:      base.Clone(),
		log:       log,
		overrides: make(ratelimit.Policies),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the admin routes on r.
func (h *RateLimitAdminHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/policies", h.ListPolicies).Methods(http.MethodGet)
	r.HandleFunc("/policies/{class}", h.PutPolicy).Methods(http.MethodPut)
	r.HandleFunc("/policies/{class}", h.DeletePolicy).Methods(http.MethodDelete)
	r.HandleFunc("/classify", h.Classify).Methods(http.MethodGet)
}

// PolicyView is one row of the effective policy table.
type PolicyView struct {
	Class       string `json:"class"`
	Window      string `json:"window"`
	WindowMs    int64  `json:"window_ms"`
	MaxRequests int    `json:"max_requests"`
	Overridden  bool   `json:"overridden"`
}

// PolicyRequest is the body of PUT /policies/{class}.
type PolicyRequest struct {
	Window      string `json:"window" validate:"required,positive_duration"`
	MaxRequests int    `json:"max_requests" validate:"required,min=1,max=1000000"`
}

// policyPath holds the route variables of /policies/{class}.
type policyPath struct {
	Class string `validate:"required,endpoint_class"`
}

func classFromPath(r *http.Request) (ratelimit.EndpointClass, error) {
	path := policyPath{Class: mux.Vars(r)["class"]}
	if err := validation.Validate.Struct(path); err != nil {
		return "", fmt.Errorf("%w: %q", ratelimit.ErrUnknownClass, path.Class)
	}
	return ratelimit.ParseEndpointClass(path.Class)
}

// ClassifyResponse reports how a path would be limited.
type ClassifyResponse struct {
	Path   string `json:"path"`
	Bypass bool   `json:"bypass"`
	Class  string `json:"class,omitempty"`
}

// ListPolicies handles GET /policies.
func (h *RateLimitAdminHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.views(h.limiter.Policies()))
}

func (h *RateLimitAdminHandler) views(effective ratelimit.Policies) []PolicyView {
	out := make([]PolicyView, 0, len(effective))
	for _, class := range ratelimit.Classes() {
		p := effective[class]
		out = append(out, PolicyView{
			Class:       string(class),
			Window:      p.Window.String(),
			WindowMs:    p.Window.Milliseconds(),
			MaxRequests: p.MaxRequests,
			Overridden:  p != h.base[class],
		})
	}
	return out
}

// PutPolicy handles PUT /policies/{class}. The override takes effect immediately.
func (h *RateLimitAdminHandler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	class, err := classFromPath(r)
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}

	var req PolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.Message(err))
		return
	}
	window, _ := time.ParseDuration(strings.TrimSpace(req.Window))
	policy := ratelimit.Policy{Window: window, MaxRequests: req.MaxRequests}

	if err := h.apply(r.Context(), class, &policy); err != nil {
		h.writeApplyError(w, err)
		return
	}
	h.log.Info("rate_limit_policy_updated",
		zap.String("class", string(class)),
		zap.Duration("window", policy.Window),
		zap.Int("max_requests", policy.MaxRequests),
	)
	respondJSON(w, http.StatusOK, h.views(h.limiter.Policies()))
}

// DeletePolicy handles DELETE /policies/{class}, reverting the class to its base policy.
func (h *RateLimitAdminHandler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	class, err := classFromPath(r)
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	if err := h.apply(r.Context(), class, nil); err != nil {
		h.writeApplyError(w, err)
		return
	}
	h.log.Info("rate_limit_policy_reset", zap.String("class", string(class)))
	respondJSON(w, http.StatusOK, h.views(h.limiter.Policies()))
}

// Classify handles GET /classify?path=.
func (h *RateLimitAdminHandler) Classify(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "path query parameter is required")
		return
	}
	resp := ClassifyResponse{Path: p, Bypass: ratelimit.Bypass(p)}
	if !resp.Bypass {
		resp.Class = string(ratelimit.Classify(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

// apply stores or clears (policy == nil) the override for class and pushes
// the merged table to the limiter.
func (h *RateLimitAdminHandler) apply(ctx context.Context, class ratelimit.EndpointClass, policy *ratelimit.Policy) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if policy != nil {
		candidate := h.limiter.Policies()
		candidate[class] = *policy
		if err := h.limiter.CheckPolicies(candidate); err != nil {
			return err
		}
	}

	var overrides ratelimit.Policies
	if h.repo != nil {
		if policy != nil {
			if err := h.repo.Upsert(ctx, models.NewRateLimitPolicy(class, *policy)); err != nil {
				return err
			}
		} else if _, err := h.repo.Delete(ctx, class); err != nil {
			return err
		}
		stored, _, err := h.repo.Policies(ctx)
		if err != nil {
			return err
		}
		overrides = stored
	} else {
		next := h.overrides.Clone()
		if policy != nil {
			next[class] = *policy
		} else {
			delete(next, class)
		}
		overrides = next
	}

	if err := h.limiter.SetPolicies(h.base.Merge(overrides)); err != nil {
		return err
	}
	if h.repo == nil {
		h.overrides = overrides
	}
	return nil
}

func (h *RateLimitAdminHandler) writeApplyError(w http.ResponseWriter, err error) {
	if errors.Is(err, ratelimit.ErrInvalidPolicy) || errors.Is(err, ratelimit.ErrUnknownClass) {
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
		return
	}
	h.log.Error("failed_to_apply_rate_limit_policy", zap.Error(err))
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update rate limit policy")
}
