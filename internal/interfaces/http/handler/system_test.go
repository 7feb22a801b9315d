package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jewelryerp/backend/tests/testutil"
)

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("jewel-ledger", "1.2.0", nil)
	tc := testutil.NewTestContext(t)

	h.GetSystemInfo(tc.Context)

	assert.Equal(t, http.StatusOK, tc.ResponseCode())
	data := decode(t, tc.Recorder).Data.(map[string]interface{})
	assert.Equal(t, "jewel-ledger", data["name"])
	assert.Equal(t, "1.2.0", data["version"])
	assert.NotEmpty(t, data["go_version"])
}

func TestSystemHandler_Health(t *testing.T) {
	tc := testutil.NewTestContext(t)
	NewSystemHandler("jewel-ledger", "dev", nil).Health(tc.Context)
	assert.Equal(t, http.StatusOK, tc.ResponseCode())
	assert.Contains(t, tc.Recorder.Body.String(), "healthy")
}

func TestSystemHandler_Ready(t *testing.T) {
	up := PingerFunc(func(context.Context) error { return nil })
	down := PingerFunc(func(context.Context) error { return errors.New("connection refused") })

	tc := testutil.NewTestContext(t)
	NewSystemHandler("jewel-ledger", "dev", map[string]Pinger{"database": up}).Ready(tc.Context)
	assert.Equal(t, http.StatusOK, tc.ResponseCode())

	tc = testutil.NewTestContext(t)
	NewSystemHandler("jewel-ledger", "dev", map[string]Pinger{"database": up, "redis": down}).Ready(tc.Context)
	assert.Equal(t, http.StatusServiceUnavailable, tc.ResponseCode())
	resp := decode(t, tc.Recorder)
	assert.Equal(t, "connection refused", resp.Data.(map[string]interface{})["redis"])
}
