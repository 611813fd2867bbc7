package api

import (
	"net/http"

	"github.com/missionlab/payment-service/svc/billing"
)

// listPlans returns the active catalog. ?all=true includes retired plans.
func (h *handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	tier := billing.PlanTier(r.URL.Query().Get("type"))
	all := r.URL.Query().Get("all") == "true"
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		if !p.Active && !all {
			continue
		}
		if tier != "" && p.Tier != tier {
			continue
		}
		out = append(out, newPlanView(p))
	}
	respondMeta(w, out, map[string]any{"total": len(out)})
}

func (h *handler) getPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "planId")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	plan, err := h.Store.GetPlan(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusOK, newPlanView(*plan))
}
