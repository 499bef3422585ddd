package logger

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, logrus.ErrorLevel, parseLevel("error"))
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
	assert.Equal(t, logrus.InfoLevel, parseLevel("verbose"))
}

func TestJSONOutputOutsideLocal(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	var buf bytes.Buffer
	log := NewWithOutput(&buf)
	log.Component("simulator").Info("hello")

	out := buf.String()
	assert.Contains(t, out, `"component":"simulator"`)
	assert.Contains(t, out, `"service":"negotiation-eval"`)
	assert.Contains(t, out, `"msg":"hello"`)
}

func TestWithErrorNil(t *testing.T) {
	log := Discard()
	assert.Equal(t, log.Entry, log.WithError(nil))
	assert.Equal(t, "boom", log.WithError(errors.New("boom")).Data["error"])
}

func TestWithRequestUsesHeaderID(t *testing.T) {
	log := Discard()
	r := httptest.NewRequest("GET", "/healthz", nil)
	r.Header.Set("X-Request-ID", "abc")
	e := log.WithRequest(r)
	assert.Equal(t, "abc", e.Data["req_id"])
	assert.Equal(t, "/healthz", e.Data["path"])

	r2 := httptest.NewRequest("GET", "/runs", nil)
	assert.NotEmpty(t, log.WithRequest(r2).Data["req_id"])
}
