package errutil_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskcascade/pkg/utils/errutil"
)

func TestHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("nil error", func(t *testing.T) {
		gt.NoError(t, errutil.Handle(ctx, nil, "nothing"))
	})

	t.Run("returns the same error", func(t *testing.T) {
		base := goerr.New("boom", goerr.V("risk_id", 3))
		err := errutil.Handle(ctx, base, "failed")
		gt.Bool(t, errors.Is(err, base)).True()
	})
}

func TestHandleHTTP(t *testing.T) {
	ctx := context.Background()

	t.Run("client error exposes message", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(ctx, w, goerr.New("invalid run ID"), http.StatusBadRequest)
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.String(t, w.Body.String()).Contains("invalid run ID")
	})

	t.Run("server error hides message", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(ctx, w, goerr.New("database password is wrong"), http.StatusInternalServerError)
		gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
		gt.String(t, w.Body.String()).NotContains("password")
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(ctx, w, nil, http.StatusInternalServerError)
		gt.Value(t, w.Body.Len()).Equal(0)
	})
}
