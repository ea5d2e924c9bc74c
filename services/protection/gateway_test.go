package protection

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kioskcm/pkg/faults"
)

type stubClient struct {
	createID  string
	createErr error
	found     []string
	findErr   error
	deleteErr error

	created []Request
	lookups []string
	deleted []string
}

func (c *stubClient) CreateResource(_ context.Context, req Request) (string, error) {
	c.created = append(c.created, req)
	return c.createID, c.createErr
}

func (c *stubClient) FindByURI(_ context.Context, uri string) ([]string, error) {
	c.lookups = append(c.lookups, uri)
	return c.found, c.findErr
}

func (c *stubClient) DeleteResource(_ context.Context, id string) error {
	c.deleted = append(c.deleted, id)
	return c.deleteErr
}

func testTarget() Target {
	return Target{
		CustomerID:    uuid.MustParse("00000000-0000-0000-0000-00000000000c"),
		DeviceID:      uuid.MustParse("00000000-0000-0000-0000-00000000000d"),
		ApplicationID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"),
		ResourceID:    uuid.MustParse("00000000-0000-0000-0000-00000000000f"),
		OwnerID:       "user-1",
	}
}

func TestTargetURI(t *testing.T) {
	want := "/v1/00000000-0000-0000-0000-00000000000c/devices/00000000-0000-0000-0000-00000000000d" +
		"/applications/00000000-0000-0000-0000-00000000000a/resources/00000000-0000-0000-0000-00000000000f"
	if got := testTarget().URI(); got != want {
		t.Fatalf("URI() = %q, want %q", got, want)
	}
}

func TestGatewayProtect(t *testing.T) {
	tests := []struct {
		name     string
		client   *stubClient
		want     string
		wantKind faults.Kind
		lookups  int
	}{
		{
			name:   "created",
			client: &stubClient{createID: "ext-1"},
			want:   "ext-1",
		},
		{
			name:    "already exists falls back to uri lookup",
			client:  &stubClient{found: []string{"ext-existing"}},
			want:    "ext-existing",
			lookups: 1,
		},
		{
			name:     "create failure",
			client:   &stubClient{createErr: errors.New("boom")},
			wantKind: faults.KindUpstreamFailure,
		},
		{
			name:     "fallback finds nothing",
			client:   &stubClient{},
			wantKind: faults.KindUpstreamFailure,
			lookups:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, err := NewGateway(tt.client, zerolog.Nop())
			if err != nil {
				t.Fatalf("NewGateway() error = %v", err)
			}

			got, err := gw.Protect(context.Background(), testTarget())
			if tt.wantKind != "" {
				if !faults.Is(err, tt.wantKind) {
					t.Fatalf("Protect() error = %v, want kind %s", err, tt.wantKind)
				}
			} else if err != nil {
				t.Fatalf("Protect() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Protect() = %q, want %q", got, tt.want)
			}
			if len(tt.client.lookups) != tt.lookups {
				t.Fatalf("FindByURI calls = %d, want %d", len(tt.client.lookups), tt.lookups)
			}
			if len(tt.client.created) != 1 {
				t.Fatalf("CreateResource calls = %d, want 1", len(tt.client.created))
			}
			req := tt.client.created[0]
			if req.Owner != "user-1" || req.Type != "resource" || len(req.Scopes) != len(Scopes) {
				t.Fatalf("unexpected create request %+v", req)
			}
		})
	}
}

func TestGatewayUnprotectSwallowsFailure(t *testing.T) {
	client := &stubClient{deleteErr: errors.New("unavailable")}
	gw, err := NewGateway(client, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	gw.Unprotect(context.Background(), "ext-1")
	gw.Unprotect(context.Background(), "")

	if len(client.deleted) != 1 || client.deleted[0] != "ext-1" {
		t.Fatalf("deleted = %v, want [ext-1]", client.deleted)
	}
}
