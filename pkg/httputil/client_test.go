package httputil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientCachedPerTimeout(t *testing.T) {
	c1 := Client(10 * time.Second)
	c2 := Client(10 * time.Second)
	if c1 != c2 {
		t.Error("Client() should return the same instance for the same timeout")
	}

	c3 := Client(30 * time.Second)
	if c1 == c3 {
		t.Error("different timeouts should return different clients")
	}
	if c3.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c3.Timeout)
	}
}

func TestClientDefaultTimeout(t *testing.T) {
	c := Client(0)
	if c.Timeout != 30*time.Second {
		t.Errorf("zero timeout should default to 30s, got %v", c.Timeout)
	}
}

func TestClientsShareTransport(t *testing.T) {
	a := Client(5 * time.Second)
	b := Client(60 * time.Second)
	if a.Transport != b.Transport {
		t.Error("clients with different timeouts should share one transport")
	}
}

func TestReadResponseBody(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxSize int64
		wantLen int
	}{
		{"normal read", "hello world", 1024, 11},
		{"truncated read", strings.Repeat("x", 1000), 100, 100},
		{"default max size", "test", 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadResponseBody(strings.NewReader(tt.input), tt.maxSize)
			if err != nil {
				t.Fatalf("ReadResponseBody() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("ReadResponseBody() len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestReadErrorBodyTruncates(t *testing.T) {
	largeError := strings.Repeat("error details ", 10000)
	got, err := ReadErrorBody(strings.NewReader(largeError))
	if err != nil {
		t.Fatalf("ReadErrorBody() error = %v", err)
	}
	if len(got) > 64*1024 {
		t.Errorf("ReadErrorBody() should truncate to 64KB, got %d bytes", len(got))
	}
}

func TestDrainAndClose(t *testing.T) {
	r := &trackingReader{Reader: bytes.NewReader([]byte("test data"))}
	DrainAndClose(io.NopCloser(r))
	if !r.fullyRead {
		t.Error("DrainAndClose should fully drain the body")
	}
}

func TestDrainAndCloseNil(t *testing.T) {
	DrainAndClose(nil)
}

type trackingReader struct {
	io.Reader
	fullyRead bool
}

func (r *trackingReader) Read(p []byte) (n int, err error) {
	n, err = r.Reader.Read(p)
	if err == io.EOF {
		r.fullyRead = true
	}
	return
}

func TestClientConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := Client(10 * time.Second)
	for i := range 10 {
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		DrainAndClose(resp.Body)
	}
}
