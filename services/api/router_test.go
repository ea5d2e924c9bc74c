package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kioskcm/internal/testutil"
	"kioskcm/pkg/faults"
	"kioskcm/services/locks"
	"kioskcm/services/protection"
	"kioskcm/services/resources"
	"kioskcm/services/store"
	"kioskcm/services/wall"
)

type stubNames map[string]string

func (n stubNames) DisplayName(_ context.Context, userID string) (string, bool) {
	name, ok := n[userID]
	return name, ok
}

type fixture struct {
	store    *store.Store
	ctrl     *resources.Controller
	handler  http.Handler
	customer store.Customer
	device   store.Device
	app      store.Application
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clk := testutil.FixedClock()

	st := testutil.NewTestStore(t)
	gw, err := protection.NewGateway(testutil.NewProtectionClient(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	ctrl, err := resources.New(st, gw, resources.Options{Clock: clk, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("resources.New() error = %v", err)
	}
	lockCtrl, err := locks.New(st, locks.Options{Clock: clk, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("locks.New() error = %v", err)
	}
	agg, err := wall.New(st, zerolog.Nop())
	if err != nil {
		t.Fatalf("wall.New() error = %v", err)
	}

	a, err := New(Services{
		Store:     st,
		Resources: ctrl,
		Locks:     lockCtrl,
		Wall:      agg,
		Names:     stubNames{"u1": "Ada Lovelace"},
	}, Config{Clock: clk, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h, err := a.Routes()
	if err != nil {
		t.Fatalf("Routes() error = %v", err)
	}

	now := clk.Now()
	f := &fixture{store: st, ctrl: ctrl, handler: h}
	f.customer = store.Customer{ID: uuid.New(), Name: "Acme", CreatorID: "admin", ModifierID: "admin", CreatedAt: now, ModifiedAt: now}
	if err := st.CreateCustomer(ctx, f.customer); err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	f.device = store.Device{ID: uuid.New(), CustomerID: f.customer.ID, Name: "Lobby", APIKey: "secret", CreatorID: "admin", ModifierID: "admin", CreatedAt: now, ModifiedAt: now}
	if err := st.CreateDevice(ctx, f.device); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	f.app, err = ctrl.CreateApplication(ctx, f.device, "Lobby wall", "admin")
	if err != nil {
		t.Fatalf("CreateApplication() error = %v", err)
	}
	return f
}

func (f *fixture) appPath() string {
	return "/v1/customers/" + f.customer.ID.String() + "/devices/" + f.device.ID.String() + "/applications/" + f.app.ID.String()
}

func (f *fixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type resourceResponse struct {
	Resource struct {
		ID         uuid.UUID  `json:"id"`
		ParentID   *uuid.UUID `json:"parentId"`
		Type       string     `json:"type"`
		Slug       string     `json:"slug"`
		Properties []KeyValue `json:"properties"`
	} `json:"resource"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (f *fixture) createMenu(t *testing.T, slug string) resourceResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, f.appPath()+"/resources", "u1", map[string]any{
		"type":       "MENU",
		"name":       slug,
		"slug":       slug,
		"parentId":   *f.app.ActiveContentVersionID,
		"properties": []KeyValue{{Key: "title", Value: "Welcome"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create resource status = %d body = %s", rec.Code, rec.Body.String())
	}
	return decode[resourceResponse](t, rec)
}

func TestRequestsRequireUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/customers", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["error"]; got == "" {
		t.Fatalf("expected error message in body")
	}
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}

func TestCustomerAndDeviceLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/customers", "admin", map[string]any{"name": "  Globex "})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer status = %d body = %s", rec.Code, rec.Body.String())
	}
	created := decode[struct {
		Customer store.Customer `json:"customer"`
	}](t, rec).Customer
	if created.Name != "Globex" || created.CreatorID != "admin" {
		t.Fatalf("unexpected customer %+v", created)
	}

	if rec := f.do(t, http.MethodPost, "/v1/customers", "admin", map[string]any{"name": ""}); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/v1/customers", "admin", map[string]any{"name": "x", "bogus": 1}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", rec.Code)
	}

	base := "/v1/customers/" + f.customer.ID.String()
	if rec := f.do(t, http.MethodDelete, base, "admin", nil); rec.Code != http.StatusConflict {
		t.Fatalf("delete customer with devices status = %d, want 409", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, base+"/devices/"+f.device.ID.String(), "admin", nil); rec.Code != http.StatusConflict {
		t.Fatalf("delete device with applications status = %d, want 409", rec.Code)
	}

	other := "/v1/customers/" + created.ID.String() + "/devices/" + f.device.ID.String()
	if rec := f.do(t, http.MethodGet, other, "admin", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("device under foreign customer status = %d, want 404", rec.Code)
	}

	if rec := f.do(t, http.MethodDelete, "/v1/customers/"+created.ID.String(), "admin", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete empty customer status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/customers/"+created.ID.String(), "admin", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted customer status = %d, want 404", rec.Code)
	}
}

type deviceResponse struct {
	Device struct {
		ID    uuid.UUID  `json:"id"`
		Name  string     `json:"name"`
		Metas []KeyValue `json:"metas"`
	} `json:"device"`
}

func TestDeviceMetasReplaceOnUpdate(t *testing.T) {
	f := newFixture(t)
	devices := "/v1/customers/" + f.customer.ID.String() + "/devices"

	rec := f.do(t, http.MethodPost, devices, "admin", map[string]any{
		"name":  "Hall",
		"metas": []KeyValue{{Key: "screen", Value: "4k"}, {Key: "floor", Value: "1"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create device status = %d body = %s", rec.Code, rec.Body.String())
	}
	created := decode[deviceResponse](t, rec).Device
	want := []KeyValue{{Key: "floor", Value: "1"}, {Key: "screen", Value: "4k"}}
	if !reflect.DeepEqual(created.Metas, want) {
		t.Fatalf("created metas = %+v, want %+v", created.Metas, want)
	}
	before, err := f.store.ListDeviceMetas(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("ListDeviceMetas() error = %v", err)
	}

	path := devices + "/" + created.ID.String()
	rec = f.do(t, http.MethodPut, path, "editor", map[string]any{
		"name":  "Hall",
		"metas": []KeyValue{{Key: "floor", Value: "2"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update device status = %d body = %s", rec.Code, rec.Body.String())
	}
	updated := decode[deviceResponse](t, rec).Device
	if !reflect.DeepEqual(updated.Metas, []KeyValue{{Key: "floor", Value: "2"}}) {
		t.Fatalf("updated metas = %+v", updated.Metas)
	}
	after, err := f.store.ListDeviceMetas(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("ListDeviceMetas() error = %v", err)
	}
	if len(after) != 1 || after[0].ID != before[0].ID || after[0].ModifierID != "editor" {
		t.Fatalf("floor meta = %+v, want id %s kept and modifier editor", after, before[0].ID)
	}

	listed := decode[struct {
		Devices []struct {
			ID    uuid.UUID  `json:"id"`
			Metas []KeyValue `json:"metas"`
		} `json:"devices"`
	}](t, f.do(t, http.MethodGet, devices, "admin", nil)).Devices
	for _, d := range listed {
		if d.Metas == nil {
			t.Fatalf("device %s listed without metas array", d.ID)
		}
	}

	dup := map[string]any{"name": "Hall", "metas": []KeyValue{{Key: "a"}, {Key: "a"}}}
	if rec := f.do(t, http.MethodPut, path, "editor", dup); rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate meta key status = %d, want 400", rec.Code)
	}
}

func TestCreateAndGetResource(t *testing.T) {
	f := newFixture(t)
	menu := f.createMenu(t, "menu")

	if menu.Resource.Type != "MENU" || menu.Resource.ParentID == nil || *menu.Resource.ParentID != *f.app.ActiveContentVersionID {
		t.Fatalf("unexpected resource %+v", menu.Resource)
	}

	rec := f.do(t, http.MethodGet, f.appPath()+"/resources/"+menu.Resource.ID.String(), "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decode[resourceResponse](t, rec)
	if len(got.Resource.Properties) != 1 || got.Resource.Properties[0] != (KeyValue{Key: "title", Value: "Welcome"}) {
		t.Fatalf("properties = %+v", got.Resource.Properties)
	}

	rec = f.do(t, http.MethodGet, f.appPath()+"/resources?parentId="+f.app.ActiveContentVersionID.String()+"&type=menu", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decode[struct {
		Resources []store.Resource `json:"resources"`
	}](t, rec)
	if len(list.Resources) != 1 || list.Resources[0].ID != menu.Resource.ID {
		t.Fatalf("list = %+v", list.Resources)
	}
}

func TestCreateResourceValidation(t *testing.T) {
	f := newFixture(t)
	path := f.appPath() + "/resources"
	cv := *f.app.ActiveContentVersionID

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{name: "missing parent", body: map[string]any{"type": "MENU", "name": "m"}, want: http.StatusBadRequest},
		{name: "unknown type", body: map[string]any{"type": "WIDGET", "parentId": cv}, want: http.StatusBadRequest},
		{name: "duplicate property", body: map[string]any{"type": "MENU", "parentId": cv, "properties": []KeyValue{{Key: "a"}, {Key: "a"}}}, want: http.StatusBadRequest},
		{name: "content version under content version", body: map[string]any{"type": "CONTENT_VERSION", "parentId": cv}, want: http.StatusConflict},
		{name: "unknown parent", body: map[string]any{"type": "MENU", "parentId": uuid.New()}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, path, "u1", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCopyResource(t *testing.T) {
	f := newFixture(t)
	menu := f.createMenu(t, "menu")
	cv := f.app.ActiveContentVersionID.String()
	base := f.appPath() + "/resources?copyResourceId=" + menu.Resource.ID.String()

	if rec := f.do(t, http.MethodPost, base, "u1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("copy without parent status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, base+"&copyResourceParentId="+cv, "u1", map[string]any{"type": "MENU"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("copy with body status = %d, want 400", rec.Code)
	}

	rec := f.do(t, http.MethodPost, base+"&copyResourceParentId="+cv, "u1", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("copy status = %d body = %s", rec.Code, rec.Body.String())
	}
	copied := decode[resourceResponse](t, rec)
	if copied.Resource.ID == menu.Resource.ID || copied.Resource.Slug != "menu" {
		t.Fatalf("unexpected copy %+v", copied.Resource)
	}
	if len(copied.Resource.Properties) != 1 {
		t.Fatalf("copy properties = %+v", copied.Resource.Properties)
	}
}

func TestLockGatesEdits(t *testing.T) {
	f := newFixture(t)
	menu := f.createMenu(t, "menu")
	resPath := f.appPath() + "/resources/" + menu.Resource.ID.String()

	if rec := f.do(t, http.MethodGet, resPath+"/lock", "u1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get missing lock status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, resPath+"/lock", "u1", nil); rec.Code != http.StatusOK {
		t.Fatalf("acquire status = %d body = %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPut, resPath+"/lock", "u2", nil); rec.Code != http.StatusConflict {
		t.Fatalf("foreign acquire status = %d, want 409", rec.Code)
	}

	rec := f.do(t, http.MethodGet, resPath+"/lock", "u2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get lock status = %d", rec.Code)
	}
	lock := decode[struct {
		Lock Lock `json:"lock"`
	}](t, rec).Lock
	if lock.UserID != "u1" || lock.UserDisplayName == nil || *lock.UserDisplayName != "Ada Lovelace" {
		t.Fatalf("unexpected lock %+v", lock)
	}

	update := map[string]any{"type": "MENU", "name": "Menu", "slug": "menu", "parentId": *f.app.ActiveContentVersionID}
	if rec := f.do(t, http.MethodPut, resPath, "u2", update); rec.Code != http.StatusConflict {
		t.Fatalf("foreign update status = %d, want 409", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, resPath, "u2", nil); rec.Code != http.StatusConflict {
		t.Fatalf("foreign delete status = %d, want 409", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, resPath, "u1", update); rec.Code != http.StatusOK {
		t.Fatalf("holder update status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/v1/applications/"+f.app.ID.String()+"/lockedResources", "u2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("locked resources status = %d", rec.Code)
	}
	ids := decode[struct {
		ResourceIDs []uuid.UUID `json:"resourceIds"`
	}](t, rec).ResourceIDs
	if len(ids) != 1 || ids[0] != menu.Resource.ID {
		t.Fatalf("locked resources = %v", ids)
	}

	if rec := f.do(t, http.MethodDelete, resPath+"/lock", "u2", nil); rec.Code != http.StatusConflict {
		t.Fatalf("foreign release status = %d, want 409", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, resPath+"/lock", "u1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("release status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, resPath, "u2", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete after release status = %d body = %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, resPath, "u2", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted resource status = %d, want 404", rec.Code)
	}
}

func (f *fixture) createChild(t *testing.T, parent uuid.UUID, typ, slug string) uuid.UUID {
	t.Helper()
	rec := f.do(t, http.MethodPost, f.appPath()+"/resources", "u1", map[string]any{
		"type":     typ,
		"name":     slug,
		"slug":     slug,
		"parentId": parent,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %s status = %d body = %s", slug, rec.Code, rec.Body.String())
	}
	return decode[resourceResponse](t, rec).Resource.ID
}

func TestDeleteWithForeignLockedDescendantDeletesNothing(t *testing.T) {
	f := newFixture(t)
	menu := f.createMenu(t, "menu").Resource.ID
	page := f.createChild(t, menu, "PAGE", "page")
	image := f.createChild(t, page, "IMAGE", "image")
	resPath := func(id uuid.UUID) string { return f.appPath() + "/resources/" + id.String() }

	if rec := f.do(t, http.MethodPut, resPath(image)+"/lock", "u2", nil); rec.Code != http.StatusOK {
		t.Fatalf("acquire status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodDelete, resPath(menu), "u1", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
	for _, id := range []uuid.UUID{menu, page, image} {
		if rec := f.do(t, http.MethodGet, resPath(id), "u1", nil); rec.Code != http.StatusOK {
			t.Fatalf("get %s after rejected delete status = %d, want 200", id, rec.Code)
		}
	}

	// The lock holder's own lock does not block the delete.
	if rec := f.do(t, http.MethodDelete, resPath(menu), "u2", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("holder delete status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestResourceOfAnotherApplicationIsConflict(t *testing.T) {
	f := newFixture(t)
	other, err := f.ctrl.CreateApplication(context.Background(), f.device, "Other wall", "admin")
	if err != nil {
		t.Fatalf("CreateApplication() error = %v", err)
	}

	rec := f.do(t, http.MethodGet, f.appPath()+"/resources/"+other.ActiveContentVersionID.String(), "u1", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestWallExportRequiresAPIKey(t *testing.T) {
	f := newFixture(t)
	f.createMenu(t, "menu")
	path := "/v1/wall/applications/" + f.app.ID.String()

	tests := []struct {
		name string
		key  string
		want int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "mismatch", key: "nope", want: http.StatusForbidden},
		{name: "match", key: "secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.key != "" {
				req.Header.Set(wallKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			out := decode[wall.Export](t, rec)
			if out.Name != "Lobby wall" || out.Root == nil || out.Root.ID != *f.app.ActiveContentVersionID {
				t.Fatalf("unexpected export %+v", out)
			}
			if len(out.Root.Children) != 1 || out.Root.Children[0].Properties["title"] != "Welcome" {
				t.Fatalf("unexpected children %+v", out.Root.Children)
			}
		})
	}
}

func TestWallDeviceExport(t *testing.T) {
	f := newFixture(t)
	path := "/v1/wall/devices/" + f.device.ID.String()

	tests := []struct {
		name string
		key  string
		want int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "mismatch", key: "nope", want: http.StatusForbidden},
		{name: "match", key: "secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.key != "" {
				req.Header.Set(wallKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			out := decode[wall.DeviceExport](t, rec)
			if out.Name != "Lobby" || len(out.Applications) != 1 || out.Applications[0].ID != f.app.ID {
				t.Fatalf("unexpected device export %+v", out)
			}
		})
	}

	if rec := f.do(t, http.MethodGet, "/v1/wall/devices/"+uuid.NewString(), "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device status = %d, want 404", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind faults.Kind
		want int
	}{
		{faults.KindNotFound, http.StatusNotFound},
		{faults.KindConflict, http.StatusConflict},
		{faults.KindInvalidRequest, http.StatusBadRequest},
		{faults.KindUnauthorized, http.StatusUnauthorized},
		{faults.KindForbidden, http.StatusForbidden},
		{faults.KindUpstreamFailure, http.StatusBadGateway},
		{faults.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.kind); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
