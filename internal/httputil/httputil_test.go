package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		xff, xri   string
		remoteAddr string
		want       string
	}{
		{"remote addr with port", false, "", "", "192.168.1.1:12345", "192.168.1.1"},
		{"ipv6 remote addr", false, "", "", "[::1]:12345", "::1"},
		{"remote addr without port", false, "", "", "192.168.1.1", "192.168.1.1"},
		{"headers ignored when untrusted", false, "1.2.3.4", "5.6.7.8", "10.0.0.1:1234", "10.0.0.1"},
		{"first XFF entry", true, "1.2.3.4, 10.0.0.1", "", "10.0.0.3:1234", "1.2.3.4"},
		{"X-Real-IP fallback", true, "", "5.6.7.8", "10.0.0.1:1234", "5.6.7.8"},
		{"XFF before X-Real-IP", true, "1.2.3.4", "5.6.7.8", "10.0.0.1:1234", "1.2.3.4"},
		{"empty XFF entry", true, " , 10.0.0.2", "", "10.0.0.1:1234", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remoteAddr, Header: http.Header{}}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r, tt.trust); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "satellite not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "satellite not found" {
		t.Errorf("body = %v", body)
	}
}

func TestParams(t *testing.T) {
	q := url.Values{
		"lat":   {"40.5"},
		"bad":   {"abc"},
		"big":   {"500"},
		"count": {"3"},
		"at":    {"2024-03-19T12:00:00Z"},
	}

	if v, err := FloatParam(q, "lat", 0, -90, 90); err != nil || v != 40.5 {
		t.Errorf("FloatParam(lat) = %v, %v", v, err)
	}
	if v, err := FloatParam(q, "missing", 7, 0, 10); err != nil || v != 7 {
		t.Errorf("FloatParam default = %v, %v", v, err)
	}
	if _, err := FloatParam(q, "bad", 0, 0, 10); err == nil {
		t.Error("FloatParam accepted a non-number")
	}
	if _, err := FloatParam(q, "big", 0, 0, 90); err == nil {
		t.Error("FloatParam accepted an out-of-range value")
	}
	if v, err := IntParam(q, "count", 1, 1, 20); err != nil || v != 3 {
		t.Errorf("IntParam = %v, %v", v, err)
	}
	if _, err := IntParam(q, "big", 1, 1, 20); err == nil {
		t.Error("IntParam accepted an out-of-range value")
	}
	want := time.Date(2024, 3, 19, 12, 0, 0, 0, time.UTC)
	if v, err := TimeParam(q, "at", time.Time{}); err != nil || !v.Equal(want) {
		t.Errorf("TimeParam = %v, %v", v, err)
	}
	if _, err := TimeParam(q, "bad", time.Time{}); err == nil {
		t.Error("TimeParam accepted garbage")
	}
}

func TestFloatParamRejectsNonFinite(t *testing.T) {
	for _, v := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "infinity"} {
		t.Run(v, func(t *testing.T) {
			q := url.Values{"hours": {v}}
			if got, err := FloatParam(q, "hours", 48, -1e9, 1e9); err == nil {
				t.Errorf("FloatParam(%q) = %v, want error", v, got)
			}
		})
	}
}

func TestObserverParams(t *testing.T) {
	tests := []struct {
		query   string
		ok      bool
		wantErr bool
	}{
		{"", false, false},
		{"lat=40&lon=-74", true, false},
		{"lat=40", false, true},
		{"lat=95&lon=0", false, true},
		{"lat=0&lon=x", false, true},
		{"lat=NaN&lon=0", false, true},
		{"lat=0&lon=nan", false, true},
		{"lat=Inf&lon=0", false, true},
		{"lat=0&lon=-Inf", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			_, _, ok, err := ObserverParams(q)
			if ok != tt.ok || (err != nil) != tt.wantErr {
				t.Errorf("ObserverParams(%q) = ok %v, err %v", tt.query, ok, err)
			}
		})
	}
}
