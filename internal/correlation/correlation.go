// Package correlation contains Gin middleware that assigns and propagates
// a correlation id, and the requesting device's id, across a coordinator
// connection's HTTP upgrade request and the frame traffic that follows it.
package correlation

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lanforge/lanforge/internal/logging"
)

// HeaderXCorrelationID is the header key for the correlation ID.
const HeaderXCorrelationID = "X-Correlation-ID"

// HeaderXDeviceID is the header a dialing peer sets to its deviceId
// before the WebSocket upgrade, so the upgrade request's own logs are
// already attributable to a device, ahead of that device's HELLO frame.
const HeaderXDeviceID = "X-Device-ID"

// CorrelationID adds a correlation ID and, if present, the requesting
// deviceId to the request context so every log line from this request
// onward carries both.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		// Set in header for response
		c.Header(HeaderXCorrelationID, correlationID)

		// Set in context for logger
		c.Set(string(logging.CorrelationIDKey), correlationID)

		ctx := context.WithValue(c.Request.Context(), logging.CorrelationIDKey, correlationID)
		if deviceID := c.GetHeader(HeaderXDeviceID); deviceID != "" {
			c.Set(string(logging.DeviceIDKey), deviceID)
			ctx = context.WithValue(ctx, logging.DeviceIDKey, deviceID)
		}
		c.Request = c.Request.WithContext(ctx)

		// Pass to next handlers
		c.Next()
	}
}
