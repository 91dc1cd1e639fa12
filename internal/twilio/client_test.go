package twilio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient("AC123", "secret")
	c.BaseURL = srv.URL
	return c, srv
}

func TestSend_Success(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser, gotPass string

	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotTo = r.FormValue("To")
		gotFrom = r.FormValue("From")
		gotBody = r.FormValue("Body")

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "SM42"})
	})
	defer srv.Close()

	sid, err := c.Send(context.Background(), "+12125551234", "+19998887777", "Hi Sam, 250 pts")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sid != "SM42" {
		t.Errorf("sid = %q, want SM42", sid)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "AC123" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotTo != "+12125551234" || gotFrom != "+19998887777" || gotBody != "Hi Sam, 250 pts" {
		t.Errorf("form = to %q from %q body %q", gotTo, gotFrom, gotBody)
	}
}

func TestSend_APIError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    21604,
			"message": "A 'To' phone number is required.",
			"status":  400,
		})
	})
	defer srv.Close()

	_, err := c.Send(context.Background(), "", "+19998887777", "hello")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "21604") {
		t.Errorf("error should carry the Twilio code, got: %v", err)
	}
}

func TestSend_NonJSONError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	})
	defer srv.Close()

	_, err := c.Send(context.Background(), "+12125551234", "+19998887777", "hello")
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry the status, got: %v", err)
	}
}

func TestSend_ContextTimeout(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "SM1"})
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.Send(ctx, "+12125551234", "+19998887777", "hello"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestSend_MissingSID(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	})
	defer srv.Close()

	if _, err := c.Send(context.Background(), "+12125551234", "+19998887777", "hello"); err == nil {
		t.Fatal("expected error for response without sid")
	}
}
