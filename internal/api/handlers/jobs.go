package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/fleetcast/internal/scheduler"
	"github.com/wonny/fleetcast/pkg/logger"
)

// JobRegistry the scheduler surface exposed over HTTP
type JobRegistry interface {
	Jobs() []scheduler.JobInfo
	GetJobStats() map[string]scheduler.JobStats
	GetJobHistory(name string) (*scheduler.JobHistory, error)
	RunJob(name string) error
}

// JobsHandler handles scheduler endpoints
type JobsHandler struct {
	jobs   JobRegistry
	logger *logger.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(jobs JobRegistry, log *logger.Logger) *JobsHandler {
	return &JobsHandler{jobs: jobs, logger: log}
}

// JobView 잡 정보 + 통계
type JobView struct {
	scheduler.JobInfo
	Stats scheduler.JobStats `json:"stats"`
}

// List returns every registered job with its stats
// GET /jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	stats := h.jobs.GetJobStats()
	jobs := h.jobs.Jobs()

	out := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobView{JobInfo: j, Stats: stats[j.Name]})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}

// History returns the recent executions of a job
// GET /jobs/{name}/history
func (h *JobsHandler) History(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	history, err := h.jobs.GetJobHistory(name)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("job", name).Error("Failed to get job history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve job history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// Run triggers a job in the background
// POST /jobs/{name}/run
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.jobs.RunJob(name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.WithError(err).WithField("job", name).Error("Failed to trigger job")
		respondError(w, http.StatusInternalServerError, "Failed to trigger job")
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "triggered"})
}
