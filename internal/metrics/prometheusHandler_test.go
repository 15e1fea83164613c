package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHttpStatusRecorder_CapturesStatus(t *testing.T) {
	underlying := httptest.NewRecorder()
	rec := &HttpStatusRecorder{ResponseWriter: underlying, Status: 200}

	// handlers only ever see the recorder through the interface
	var w http.ResponseWriter = rec
	w.WriteHeader(http.StatusNotFound)

	if rec.Status != http.StatusNotFound {
		t.Errorf("recorder kept status %d, want %d", rec.Status, http.StatusNotFound)
	}
	if underlying.Code != http.StatusNotFound {
		t.Errorf("status never reached the underlying writer: %d", underlying.Code)
	}
}

func TestHttpStatusRecorder_DefaultsWithoutExplicitHeader(t *testing.T) {
	rec := &HttpStatusRecorder{ResponseWriter: httptest.NewRecorder(), Status: 200}

	if _, err := rec.Write([]byte("ok")); err != nil {
		t.Fatal(err)
	}
	if rec.Status != 200 {
		t.Errorf("implicit 200 lost, recorder has %d", rec.Status)
	}
}
