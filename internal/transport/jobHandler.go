package transport

import (
	"errors"
	"net/http"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *JobHandler) RunSync(c *gin.Context) {
	var req entity.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	record, err := h.service.RunSync(c.Request.Context(), req.Input)
	if err != nil {
		logrus.WithError(err).Error("runsync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *JobHandler) Submit(c *gin.Context) {
	var req entity.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	resp, err := h.service.Submit(c.Request.Context(), req.Input)
	if err != nil {
		logrus.WithError(err).Error("job submission failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not enqueue job"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) Status(c *gin.Context) {
	id := c.Param("id")

	record, err := h.service.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, entity.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *JobHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status":  "ok",
		"service": "sam3d-worker",
	}
	if h.ready != nil {
		resp["model_loaded"] = h.ready()
	}
	c.JSON(http.StatusOK, resp)
}
