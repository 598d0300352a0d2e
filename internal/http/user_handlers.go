package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/plan-it/planit/internal/domain"
)

type userResponse struct {
	ExternalID string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	Role       string `json:"role"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ExternalID: u.ExternalID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		Address:    u.Address,
		Role:       string(u.Role),
	}
}

// UpsertUser registers a user on first sign-in and refreshes name and email
// on subsequent ones. The external id comes from the identity provider and
// is the key clients use everywhere else.
func (h *Handlers) UpsertUser(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req struct {
		ExternalID string `json:"id"`
		Name       string `json:"name"`
		Email      string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ExternalID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing id or email")
		return
	}

	user, err := h.repo.UpsertUser(r.Context(), domain.User{
		ExternalID: req.ExternalID,
		Name:       req.Name,
		Email:      req.Email,
		Role:       domain.RoleCustomer,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusOK, toUserResponse(user))
	h.record(r, http.StatusOK, data)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalId")

	user, err := h.repo.GetUserByExternalID(r.Context(), externalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handlers) UpdateUserProfile(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalId")

	var req struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.repo.UpdateUserProfile(r.Context(), externalID, req.Name, req.Phone, req.Address)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i := range users {
		resp[i] = toUserResponse(&users[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

var errAdminCap = errors.New("maximum number of admins reached")

// UpdateUserRole enforces the role-change rules: at most two admins at any
// time, and an organizer who still owns events cannot be demoted. The admin
// count check and the role write share a transaction so two concurrent
// promotions cannot both slip under the cap.
func (h *Handlers) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminID string `json:"adminId"`
		Email   string `json:"email"`
		Role    string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	target, err := h.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if target.Role == domain.RoleOrganizer && role != domain.RoleOrganizer {
		hasEvents, err := h.repo.OrganizerHasEvents(r.Context(), target.ExternalID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if hasEvents {
			writeError(w, http.StatusBadRequest, "cannot change role: organizer still has events")
			return
		}
	}

	err = h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		if role == domain.RoleAdmin && target.Role != domain.RoleAdmin {
			count, err := h.repo.CountAdmins(r.Context(), tx)
			if err != nil {
				return err
			}
			if count >= domain.MaxAdmins {
				return errAdminCap
			}
		}
		return h.repo.UpdateUserRole(r.Context(), tx, req.Email, role)
	})
	if errors.Is(err, errAdminCap) {
		writeError(w, http.StatusBadRequest, errAdminCap.Error())
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.audit.LogRoleChange(r.Context(), req.AdminID, req.Email, role); err != nil {
		h.logger.WithField("email", req.Email).Warn("audit log failed", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Role updated successfully"})
}

func (h *Handlers) CreateOrganizerRequest(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return
	}

	orgReq := domain.OrganizerRequest{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Message:   req.Message,
		Status:    domain.RequestPending,
		CreatedAt: time.Now(),
	}
	if err := h.repo.CreateOrganizerRequest(r.Context(), orgReq); err != nil {
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, map[string]interface{}{"id": orgReq.ID})
	h.record(r, http.StatusCreated, data)
}

func (h *Handlers) ListOrganizerRequests(w http.ResponseWriter, r *http.Request) {
	status := domain.RequestStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.RequestPending
	}

	requests, err := h.repo.ListOrganizerRequests(r.Context(), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(requests))
	for i, req := range requests {
		resp[i] = map[string]interface{}{
			"id":        req.ID,
			"userId":    req.UserID,
			"message":   req.Message,
			"status":    req.Status,
			"createdAt": req.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DecideOrganizerRequest approves or rejects a pending request. Approval
// promotes the requesting user to organizer in the same transaction.
func (h *Handlers) DecideOrganizerRequest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.DecideOrganizerRequest(r.Context(), id, req.Approve); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Request decided"})
}
