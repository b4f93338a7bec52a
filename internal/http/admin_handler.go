package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clawdbot/platform/provisioning-service/internal/repository"
)

// AdminHandler exposes internal reconciliation endpoints. They are read-only
// views over provisioning state used when a run needs manual investigation:
// hosts that lost their instance link, and the action trail of a job.
type AdminHandler struct {
	hosts *repository.HostRepository
	jobs  *repository.JobRepository
	logs  *repository.LogRepository
}

func NewAdminHandler(hosts *repository.HostRepository, jobs *repository.JobRepository, logs *repository.LogRepository) *AdminHandler {
	return &AdminHandler{hosts: hosts, jobs: jobs, logs: logs}
}

// ListOrphanedHosts returns hosts that no instance references. These are
// servers we may still be paying for and are candidates for manual cleanup.
func (h *AdminHandler) ListOrphanedHosts(c *gin.Context) {
	hosts, err := h.hosts.ListOrphaned(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orphaned hosts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(hosts),
		"hosts": hosts,
	})
}

// ListRecentJobs returns the latest provisioning jobs across all users.
func (h *AdminHandler) ListRecentJobs(c *gin.Context) {
	jobs, err := h.jobs.ListRecent(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

// GetJob returns a single job together with its provision log trail.
func (h *AdminHandler) GetJob(c *gin.Context) {
	jobID := c.Param("id")

	job, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch job"})
		return
	}

	logs, err := h.logs.GetByJobID(c.Request.Context(), jobID, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch job logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job":  job,
		"logs": logs,
	})
}
