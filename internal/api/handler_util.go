package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"oj/internal/ojerr"
)

// rfc3339Millis formats a UTC time field at the millisecond precision
// spec.md §6 requires, rather than time.RFC3339Nano's variable precision.
const rfc3339Millis = "2006-01-02T15:04:05.000Z07:00"

func formatTimeMillis(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(rfc3339Millis)
}

// respondError writes the unified {code, reason, message} error envelope
// described in SPEC_FULL.md §7, unwrapping err once at this boundary to
// recover its wire Code.
func respondError(c *gin.Context, err error) {
	code, message := ojerr.As(err)
	c.JSON(code.HTTPStatus(), gin.H{
		"error": gin.H{
			"code":    int(code),
			"reason":  code.String(),
			"message": message,
		},
	})
}

func parsePositiveInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
