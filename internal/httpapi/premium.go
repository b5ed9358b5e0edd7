package httpapi

import (
	"net/http"
	"time"

	"melodia/internal/access"
	"melodia/internal/models"
)

type activateResponse struct {
	Message string     `json:"message"`
	Start   time.Time  `json:"start"`
	End     *time.Time `json:"end"`
}

type statusResponse struct {
	Premium   bool       `json:"premium"`
	Message   string     `json:"message"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

func (s *Server) handleActivatePremium(w http.ResponseWriter, r *http.Request, userID int64) {
	sub, err := s.premium.Activate(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activateResponse{
		Message: "premium activated",
		Start:   sub.StartDate,
		End:     sub.EndDate,
	})
}

func (s *Server) handlePremiumStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if s.opts.StatusOwnerOnly {
		callerID, err := s.guard.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := access.RequireOwner(callerID, userID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	status, err := s.premium.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := statusResponse{Premium: status.Premium, Message: "user does not have premium"}
	if status.Premium {
		resp.Message = "user has premium"
		resp.StartDate = status.StartDate
		resp.EndDate = status.EndDate
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePremiumHistory(w http.ResponseWriter, r *http.Request, userID int64) {
	history, err := s.premium.History(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []models.Subscription{}
	}
	writeJSON(w, http.StatusOK, struct {
		Subscriptions []models.Subscription `json:"subscriptions"`
	}{Subscriptions: history})
}
