package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func serve(header string) (*httptest.ResponseRecorder, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	r.ServeHTTP(w, req)
	return w, seen
}

func TestMiddlewareKeepsIncomingID(t *testing.T) {
	w, seen := serve("abc-123")
	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestMiddlewareGeneratesID(t *testing.T) {
	w, seen := serve("")
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	require.Equal(t, seen, w.Header().Get("X-Request-ID"))

	_, seen = serve(strings.Repeat("x", 200))
	_, err = uuid.Parse(seen)
	require.NoError(t, err)
}
