package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

func TestConnectConnectorHandler_MissingID(t *testing.T) {
	e := echo.New()
	s := &Server{}

	req := httptest.NewRequest(http.MethodPost, "/connectors//connect", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("")

	err := s.connectConnectorHandler(c)
	he, ok := err.(*echo.HTTPError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusBadRequest, he.Code)
	}
}
