package controllers

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/jackma2003/JackStack/middleware"
	"github.com/jackma2003/JackStack/notify"
)

type NotificationController struct {
	Hub *notify.Hub
}

// Stream pushes the caller's events over server-sent events until the
// client disconnects.
func (nc *NotificationController) Stream(c *gin.Context) {
	ch, cancel := nc.Hub.Subscribe(middleware.UserID(c))
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
