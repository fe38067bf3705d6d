package reminders

import (
	"net/http"

	"github.com/2beens/fit45/pkg"

	log "github.com/sirupsen/logrus"
)

type Handler struct {
	job *Job
}

func NewHandler(job *Job) *Handler {
	return &Handler{
		job: job,
	}
}

func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.job.Run(r.Context())
	if err != nil {
		log.Errorf("dispatch reminders: %s", err)
		http.Error(w, "failed to dispatch reminders", http.StatusServiceUnavailable)
		return
	}
	pkg.WriteJSON(w, result, http.StatusOK)
}
