package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"kioskcm/internal/testutil"
	"kioskcm/services/store"
)

var base = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func newNode(parent *uuid.UUID, typ store.ResourceType, slug string, order int) store.Resource {
	return store.Resource{
		ID:          uuid.New(),
		ParentID:    parent,
		Type:        typ,
		Name:        slug,
		Slug:        slug,
		OrderNumber: order,
		CreatorID:   "u1",
		ModifierID:  "u1",
		CreatedAt:   base,
		ModifiedAt:  base,
	}
}

func mustCreate(t *testing.T, st *store.Store, r store.Resource) store.Resource {
	t.Helper()
	if err := st.CreateResource(context.Background(), r); err != nil {
		t.Fatalf("CreateResource() error = %v", err)
	}
	return r
}

func TestResourceLookups(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewTestStore(t)

	root := mustCreate(t, st, newNode(nil, store.TypeRoot, "[root]", 0))
	cv := mustCreate(t, st, newNode(&root.ID, store.TypeContentVersion, "1", 0))
	second := mustCreate(t, st, newNode(&cv.ID, store.TypePage, "second", 2))
	first := mustCreate(t, st, newNode(&cv.ID, store.TypeMenu, "first", 1))

	children, err := st.ListChildren(ctx, cv.ID)
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	if len(children) != 2 || children[0].ID != first.ID || children[1].ID != second.ID {
		t.Fatalf("ListChildren() = %+v, want ordered [first second]", children)
	}

	menus, err := st.ListChildren(ctx, cv.ID, store.TypeMenu)
	if err != nil {
		t.Fatalf("ListChildren(MENU) error = %v", err)
	}
	if len(menus) != 1 || menus[0].ID != first.ID {
		t.Fatalf("ListChildren(MENU) = %+v", menus)
	}

	bySlug, err := st.FindByParentAndSlug(ctx, root.ID, "1")
	if err != nil || bySlug.ID != cv.ID {
		t.Fatalf("FindByParentAndSlug() = %v, %v", bySlug.ID, err)
	}
	byName, err := st.FindByParentAndName(ctx, cv.ID, "second")
	if err != nil || byName.ID != second.ID {
		t.Fatalf("FindByParentAndName() = %v, %v", byName.ID, err)
	}

	if _, err := st.GetResource(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetResource(unknown) error = %v, want ErrNotFound", err)
	}

	ids, err := st.SubtreeIDs(ctx, root.ID)
	if err != nil {
		t.Fatalf("SubtreeIDs() error = %v", err)
	}
	want := []uuid.UUID{root.ID, cv.ID, first.ID, second.ID}
	if len(ids) != len(want) {
		t.Fatalf("SubtreeIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("SubtreeIDs()[%d] = %v, want %v", i, ids[i], want[i])
		}
	}
}

func TestAttributeKindsAreSeparate(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewTestStore(t)
	node := mustCreate(t, st, newNode(nil, store.TypeRoot, "[root]", 0))

	prop := store.Attribute{ID: uuid.New(), ResourceID: node.ID, Key: "color", Value: "red", CreatorID: "u1", ModifierID: "u1", CreatedAt: base, ModifiedAt: base}
	if err := st.CreateAttribute(ctx, store.KindProperty, prop); err != nil {
		t.Fatalf("CreateAttribute(property) error = %v", err)
	}
	style := prop
	style.ID = uuid.New()
	if err := st.CreateAttribute(ctx, store.KindStyle, style); err != nil {
		t.Fatalf("CreateAttribute(style) error = %v", err)
	}

	dup := prop
	dup.ID = uuid.New()
	if err := st.CreateAttribute(ctx, store.KindProperty, dup); err == nil {
		t.Fatalf("CreateAttribute(duplicate key) error = nil, want unique violation")
	}

	props, err := st.ListAttributes(ctx, store.KindProperty, node.ID)
	if err != nil {
		t.Fatalf("ListAttributes() error = %v", err)
	}
	if len(props) != 1 || props[0].ID != prop.ID {
		t.Fatalf("ListAttributes(property) = %+v", props)
	}

	if err := st.DeleteAttributesOf(ctx, store.KindStyle, []uuid.UUID{node.ID}); err != nil {
		t.Fatalf("DeleteAttributesOf() error = %v", err)
	}
	styles, _ := st.ListAttributes(ctx, store.KindStyle, node.ID)
	props, _ = st.ListAttributes(ctx, store.KindProperty, node.ID)
	if len(styles) != 0 || len(props) != 1 {
		t.Fatalf("after style delete: styles=%d props=%d", len(styles), len(props))
	}
}

func TestLockQueries(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewTestStore(t)
	appID := uuid.New()
	a, b := uuid.New(), uuid.New()

	active := store.Lock{ID: uuid.New(), ApplicationID: appID, ResourceID: a, UserID: "u1", ExpiresAt: base.Add(5 * time.Minute), CreatedAt: base}
	expired := store.Lock{ID: uuid.New(), ApplicationID: appID, ResourceID: b, UserID: "u2", ExpiresAt: base.Add(-time.Minute), CreatedAt: base}
	for _, l := range []store.Lock{active, expired} {
		if err := st.CreateLock(ctx, l); err != nil {
			t.Fatalf("CreateLock() error = %v", err)
		}
	}

	dup := active
	dup.ID = uuid.New()
	if err := st.CreateLock(ctx, dup); err == nil {
		t.Fatalf("CreateLock(same resource) error = nil, want unique violation")
	}

	locks, err := st.ListActiveLocks(ctx, appID, nil, base)
	if err != nil {
		t.Fatalf("ListActiveLocks() error = %v", err)
	}
	if len(locks) != 1 || locks[0].ResourceID != a {
		t.Fatalf("ListActiveLocks() = %+v", locks)
	}

	foreign, err := st.HasForeignActiveLock(ctx, []uuid.UUID{a, b}, "u2", base)
	if err != nil || !foreign {
		t.Fatalf("HasForeignActiveLock(u2) = %v, %v; want true", foreign, err)
	}
	foreign, err = st.HasForeignActiveLock(ctx, []uuid.UUID{a, b}, "u1", base)
	if err != nil || foreign {
		t.Fatalf("HasForeignActiveLock(u1) = %v, %v; want false", foreign, err)
	}

	stale, err := st.ListExpiredLocks(ctx, base)
	if err != nil || len(stale) != 1 || stale[0].ID != expired.ID {
		t.Fatalf("ListExpiredLocks() = %+v, %v", stale, err)
	}
	n, err := st.DeleteExpiredLocks(ctx, []uuid.UUID{expired.ID, active.ID}, base)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredLocks() = %d, %v; want 1", n, err)
	}
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewTestStore(t)
	node := newNode(nil, store.TypeRoot, "[root]", 0)
	boom := errors.New("boom")

	err := st.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.CreateResource(ctx, node); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction() error = %v, want boom", err)
	}
	if _, err := st.GetResource(ctx, node.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetResource() after rollback error = %v, want ErrNotFound", err)
	}
}

func TestReplaceDeviceMetas(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewTestStore(t)

	customer := store.Customer{ID: uuid.New(), Name: "Acme", CreatedAt: base, ModifiedAt: base}
	if err := st.CreateCustomer(ctx, customer); err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	dev := store.Device{ID: uuid.New(), CustomerID: customer.ID, Name: "Lobby", CreatedAt: base, ModifiedAt: base}
	if err := st.CreateDevice(ctx, dev); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	if err := st.ReplaceDeviceMetas(ctx, dev.ID, map[string]string{"floor": "1", "screen": "4k"}, "u1", base); err != nil {
		t.Fatalf("ReplaceDeviceMetas() error = %v", err)
	}
	before, err := st.ListDeviceMetas(ctx, dev.ID)
	if err != nil {
		t.Fatalf("ListDeviceMetas() error = %v", err)
	}
	if len(before) != 2 || before[0].Key != "floor" || before[1].Key != "screen" {
		t.Fatalf("ListDeviceMetas() = %+v, want [floor screen]", before)
	}

	later := base.Add(time.Hour)
	if err := st.ReplaceDeviceMetas(ctx, dev.ID, map[string]string{"floor": "2", "owner": "ops"}, "u2", later); err != nil {
		t.Fatalf("ReplaceDeviceMetas() error = %v", err)
	}
	after, err := st.ListDeviceMetas(ctx, dev.ID)
	if err != nil {
		t.Fatalf("ListDeviceMetas() error = %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("ListDeviceMetas() = %+v, want floor and owner", after)
	}
	floor, owner := after[0], after[1]
	if floor.Key != "floor" || floor.ID != before[0].ID || floor.Value != "2" {
		t.Fatalf("floor = %+v, want id %s reused with value 2", floor, before[0].ID)
	}
	if floor.CreatorID != "u1" || floor.ModifierID != "u2" || !floor.ModifiedAt.Equal(later) {
		t.Fatalf("floor stamps = %s/%s/%v", floor.CreatorID, floor.ModifierID, floor.ModifiedAt)
	}
	if owner.Key != "owner" || owner.CreatorID != "u2" {
		t.Fatalf("owner = %+v", owner)
	}

	if err := st.DeleteDevice(ctx, dev.ID); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	left, err := st.ListDeviceMetas(ctx, dev.ID)
	if err != nil {
		t.Fatalf("ListDeviceMetas() error = %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("metas after DeleteDevice = %+v, want none", left)
	}
}
