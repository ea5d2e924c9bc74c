package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kioskcm/internal/testutil"
	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

type fakeObjects struct {
	presigned []string
	deleted   []string
	deleteErr error
}

func (f *fakeObjects) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	f.presigned = append(f.presigned, key)
	return "https://objects.example.com/" + key + "?sig=abc", nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.deleteErr
}

func newService(t *testing.T) (*Service, *fakeObjects, store.Customer) {
	t.Helper()
	st := testutil.NewTestStore(t)
	clk := testutil.FixedClock()
	customer := store.Customer{ID: uuid.New(), Name: "Acme", CreatedAt: clk.Now(), ModifiedAt: clk.Now()}
	if err := st.CreateCustomer(context.Background(), customer); err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	objects := &fakeObjects{}
	svc, err := New(st, objects, Options{PublicBaseURL: "https://cdn.example.com/", Clock: clk, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc, objects, customer
}

func TestCreateMedia(t *testing.T) {
	svc, objects, customer := newService(t)

	up, err := svc.Create(context.Background(), customer.ID, "uploads/../Logo.PNG", "image/png", "u1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	wantKey := "media/" + customer.ID.String() + "/" + up.Media.ID.String() + "/Logo.PNG"
	if up.Media.ObjectKey != wantKey {
		t.Fatalf("object key = %q, want %q", up.Media.ObjectKey, wantKey)
	}
	if up.Media.Type != store.MediaImage || up.Media.URL != "https://cdn.example.com/"+wantKey {
		t.Fatalf("media = %+v", up.Media)
	}
	if len(objects.presigned) != 1 || !strings.Contains(up.UploadURL, wantKey) {
		t.Fatalf("upload url = %q", up.UploadURL)
	}
	if !up.ExpiresAt.Equal(up.Media.CreatedAt.Add(DefaultUploadTTL)) {
		t.Fatalf("upload expiry = %v", up.ExpiresAt)
	}

	got, err := svc.Get(context.Background(), customer.ID, up.Media.ID)
	if err != nil || got.FileName != "Logo.PNG" {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
}

func TestCreateMediaValidation(t *testing.T) {
	svc, objects, customer := newService(t)
	tests := []struct {
		name        string
		customer    uuid.UUID
		file, ctype string
		want        faults.Kind
	}{
		{name: "missing file", customer: customer.ID, file: " ", ctype: "image/png", want: faults.KindInvalidRequest},
		{name: "missing content type", customer: customer.ID, file: "a.png", want: faults.KindInvalidRequest},
		{name: "unknown customer", customer: uuid.New(), file: "a.png", ctype: "image/png", want: faults.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.customer, tt.file, tt.ctype, "u1"); !faults.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %s", err, tt.want)
			}
		})
	}
	if len(objects.presigned) != 0 {
		t.Fatalf("presigned %d uploads for rejected requests", len(objects.presigned))
	}
}

func TestListAndDeleteMedia(t *testing.T) {
	ctx := context.Background()
	svc, objects, customer := newService(t)
	img, _ := svc.Create(ctx, customer.ID, "a.jpg", "image/jpeg", "u1")
	if _, err := svc.Create(ctx, customer.ID, "b.pdf", "application/pdf", "u1"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	all, err := svc.List(ctx, customer.ID, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("List() = %d items, %v", len(all), err)
	}
	pdfs, err := svc.List(ctx, customer.ID, store.MediaPDF)
	if err != nil || len(pdfs) != 1 || pdfs[0].FileName != "b.pdf" {
		t.Fatalf("List(PDF) = %+v, %v", pdfs, err)
	}

	if err := svc.Delete(ctx, uuid.New(), img.Media.ID); !faults.Is(err, faults.KindNotFound) {
		t.Fatalf("Delete(other customer) error = %v, want not found", err)
	}

	objects.deleteErr = errors.New("bucket unavailable")
	if err := svc.Delete(ctx, customer.ID, img.Media.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != img.Media.ObjectKey {
		t.Fatalf("deleted objects = %v", objects.deleted)
	}
	if _, err := svc.Get(ctx, customer.ID, img.Media.ID); !faults.Is(err, faults.KindNotFound) {
		t.Fatalf("Get() after delete error = %v", err)
	}
}

func TestTypeFor(t *testing.T) {
	tests := map[string]store.MediaType{
		"image/png":                store.MediaImage,
		"video/mp4":                store.MediaVideo,
		"application/pdf":          store.MediaPDF,
		"text/plain; charset=utf8": store.MediaOther,
		"not a type":               store.MediaOther,
	}
	for in, want := range tests {
		if got := TypeFor(in); got != want {
			t.Errorf("TypeFor(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseType(t *testing.T) {
	if got, err := ParseType("video"); err != nil || got != store.MediaVideo {
		t.Fatalf("ParseType(video) = %q, %v", got, err)
	}
	if _, err := ParseType("audio"); !faults.Is(err, faults.KindInvalidRequest) {
		t.Fatalf("ParseType(audio) error = %v", err)
	}
}
