package apiclient

import (
	"net/http"
	"testing"
)

func TestVerificationURI(t *testing.T) {
	c := New("https://tv.example.com", nil)
	got := c.VerificationURI("abc 123")
	want := "https://tv.example.com/?state=abc+123"
	if got != want {
		t.Errorf("VerificationURI() = %q, want %q", got, want)
	}
}

func TestStatusErrorClassification(t *testing.T) {
	tests := []struct {
		code       int
		wantClient bool
		wantServer bool
	}{
		{code: http.StatusNotFound, wantClient: true},
		{code: http.StatusBadRequest, wantClient: true},
		{code: http.StatusInternalServerError, wantServer: true},
		{code: http.StatusBadGateway, wantServer: true},
	}

	for _, tt := range tests {
		err := &StatusError{Code: tt.code}
		if err.IsClientError() != tt.wantClient {
			t.Errorf("StatusError{%d}.IsClientError() = %v", tt.code, err.IsClientError())
		}
		if err.IsServerError() != tt.wantServer {
			t.Errorf("StatusError{%d}.IsServerError() = %v", tt.code, err.IsServerError())
		}
	}
}
