package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/pkg/clock"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/gate"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/registry"
)

func TestServerPublicAPI(t *testing.T) {
	vc := clock.NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	srv := New("", gate.New(registry.NewDefault(vc), vc), vc, WithWait(false))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/admit/"+registry.Auth, "", nil)
	if err != nil {
		t.Fatalf("POST /api/admit error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
