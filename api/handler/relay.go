package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/aliscout/ixspy"
	"github.com/use-agent/aliscout/models"
)

// RelayAuthenticate returns a handler for POST /api/v1/relay/authenticate.
//
// Well-formed requests always answer 200; the outcome is in the body.
func RelayAuthenticate(relay ixspy.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RelayAuthenticateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		resp, err := relay.Authenticate(c.Request.Context(), ixspy.Credentials{
			Username: req.Username,
			Password: req.Password,
		})
		writeRelay(c, resp, err)
	}
}

// RelayFetchInfo returns a handler for POST /api/v1/relay/fetch-info.
func RelayFetchInfo(relay ixspy.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RelayFetchInfoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		resp, err := relay.FetchInfo(c.Request.Context(), req.ID)
		writeRelay(c, resp, err)
	}
}

func writeRelay(c *gin.Context, resp *ixspy.RelayResponse, err error) {
	switch {
	case err != nil:
		resp = &ixspy.RelayResponse{Success: false, Error: err.Error()}
	case resp == nil:
		resp = &ixspy.RelayResponse{Success: false, Error: "empty relay response"}
	}
	c.JSON(http.StatusOK, resp)
}
