package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/readmirror/readmirror/internal/coordinator"
	"github.com/readmirror/readmirror/internal/remote"
	"github.com/readmirror/readmirror/internal/syncer"
)

// respondError maps the sync core's error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, syncer.ErrNotFound) {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "bookmark not found"})
		return
	}
	if errors.Is(err, remote.ErrNoConnectivity) {
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"error": "remote service unreachable"})
		return
	}

	var cancelErr *coordinator.CancellationError
	if errors.As(err, &cancelErr) {
		c.IndentedJSON(http.StatusConflict, gin.H{
			"error":  "operation superseded",
			"reason": string(cancelErr.Reason),
		})
		return
	}

	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		status := remoteErr.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		c.IndentedJSON(status, gin.H{
			"error":     remoteErr.Message,
			"code":      remoteErr.Code,
			"retryable": remoteErr.Retryable,
		})
		return
	}

	c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
