package version

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
)

func countDefaults(t *testing.T, db *gorm.DB, datasetID uint) int64 {
	t.Helper()

	var n int64
	if err := db.Model(&DatasetVersion{}).
		Where("dataset_id = ? AND is_default = ?", datasetID, true).
		Count(&n).Error; err != nil {
		t.Fatalf("count defaults: %v", err)
	}
	return n
}

func TestAddVersion_FirstIsDefault(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	v := mkVersion(d.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1", ObjectRef: "fake://a"})
	if err := g.AddVersion(v); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !v.IsDefault {
		t.Fatal("first version must become default")
	}

	v2 := mkVersion(d.ID, "1.1", VersionFile{Filename: "b.csv", Checksum: "c2", ObjectRef: "fake://b"})
	if err := g.AddVersion(v2); err != nil {
		t.Fatalf("add second: %v", err)
	}
	if v2.IsDefault {
		t.Fatal("second version must not steal the default")
	}
	if got := countDefaults(t, db, d.ID); got != 1 {
		t.Fatalf("defaults = %d, want 1", got)
	}
}

func TestAddVersion_DatasetNotFound(t *testing.T) {
	g := NewVersionGraph(newTestDB(t))

	v := mkVersion(999, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
	if err := g.AddVersion(v); !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("got %v want ErrDatasetNotFound", err)
	}
}

func TestAddVersion_ParentChecks(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d1 := seedDataset(t, db, "ds1")
	d2 := seedDataset(t, db, "ds2")

	parent := mkVersion(d1.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
	if err := g.AddVersion(parent); err != nil {
		t.Fatalf("add parent: %v", err)
	}

	t.Run("missing parent", func(t *testing.T) {
		missing := "00000000-0000-0000-0000-000000000000"
		child := mkVersion(d1.ID, "1.1", VersionFile{Filename: "a.csv", Checksum: "c1"})
		child.ParentVersionID = &missing
		if err := g.AddVersion(child); !errors.Is(err, ErrParentNotFound) {
			t.Fatalf("got %v want ErrParentNotFound", err)
		}
	})

	t.Run("cross dataset parent", func(t *testing.T) {
		child := mkVersion(d2.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
		child.ParentVersionID = &parent.ID
		if err := g.AddVersion(child); !errors.Is(err, ErrCrossDatasetParent) {
			t.Fatalf("got %v want ErrCrossDatasetParent", err)
		}
	})
}

func TestSetDefault_AtomicSwap(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	v1 := mkVersion(d.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
	v2 := mkVersion(d.ID, "1.1", VersionFile{Filename: "a.csv", Checksum: "c2"})
	if err := g.AddVersion(v1); err != nil {
		t.Fatalf("add v1: %v", err)
	}
	if err := g.AddVersion(v2); err != nil {
		t.Fatalf("add v2: %v", err)
	}

	got, err := g.SetDefault(v2.ID)
	if err != nil {
		t.Fatalf("set default: %v", err)
	}
	if !got.IsDefault {
		t.Fatal("target must report default")
	}
	if n := countDefaults(t, db, d.ID); n != 1 {
		t.Fatalf("defaults = %d, want 1", n)
	}

	old, err := g.GetVersion(v1.ID)
	if err != nil {
		t.Fatalf("get old default: %v", err)
	}
	if old.IsDefault {
		t.Fatal("old default must be demoted")
	}

	// idempotent
	if _, err := g.SetDefault(v2.ID); err != nil {
		t.Fatalf("idempotent set default: %v", err)
	}
	if n := countDefaults(t, db, d.ID); n != 1 {
		t.Fatalf("defaults after repeat = %d, want 1", n)
	}
}

func TestSetDefault_NotFound(t *testing.T) {
	g := NewVersionGraph(newTestDB(t))
	if _, err := g.SetDefault("nope"); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("got %v want ErrVersionNotFound", err)
	}
}

func TestLineage_RootFirst(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	root := mkVersion(d.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
	if err := g.AddVersion(root); err != nil {
		t.Fatalf("add root: %v", err)
	}

	mid := mkVersion(d.ID, "1.1", VersionFile{Filename: "a.csv", Checksum: "c2"})
	mid.ParentVersionID = &root.ID
	if err := g.AddVersion(mid); err != nil {
		t.Fatalf("add mid: %v", err)
	}

	leaf := mkVersion(d.ID, "1.2", VersionFile{Filename: "a.csv", Checksum: "c3"})
	leaf.ParentVersionID = &mid.ID
	if err := g.AddVersion(leaf); err != nil {
		t.Fatalf("add leaf: %v", err)
	}

	chain, err := g.Lineage(leaf.ID)
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	wantOrder := []string{root.ID, mid.ID, leaf.ID}
	for i, want := range wantOrder {
		if chain[i].ID != want {
			t.Fatalf("chain[%d] = %s, want %s", i, chain[i].ID, want)
		}
	}
}

func TestLineage_CycleDetected(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	a := mkVersion(d.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
	if err := g.AddVersion(a); err != nil {
		t.Fatalf("add a: %v", err)
	}
	b := mkVersion(d.ID, "1.1", VersionFile{Filename: "a.csv", Checksum: "c2"})
	b.ParentVersionID = &a.ID
	if err := g.AddVersion(b); err != nil {
		t.Fatalf("add b: %v", err)
	}

	// corrupt the links directly; the public API cannot build a cycle
	if err := db.Model(&DatasetVersion{}).Where("id = ?", a.ID).
		Update("parent_version_id", b.ID).Error; err != nil {
		t.Fatalf("corrupt link: %v", err)
	}

	if _, err := g.Lineage(b.ID); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("got %v want ErrCycleDetected", err)
	}
}

func TestLineage_ToleratesDeletedParent(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	root := mkVersion(d.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
	if err := g.AddVersion(root); err != nil {
		t.Fatalf("add root: %v", err)
	}
	child := mkVersion(d.ID, "1.1", VersionFile{Filename: "a.csv", Checksum: "c2"})
	child.ParentVersionID = &root.ID
	if err := g.AddVersion(child); err != nil {
		t.Fatalf("add child: %v", err)
	}

	if err := g.DeleteVersion(root.ID); err != nil {
		t.Fatalf("delete root: %v", err)
	}

	chain, err := g.Lineage(child.ID)
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(chain) != 1 || chain[0].ID != child.ID {
		t.Fatalf("chain = %v, want just the child", chain)
	}
}

func TestDeleteVersion_PromotesSurvivor(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	v1 := mkVersion(d.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
	if err := g.AddVersion(v1); err != nil {
		t.Fatalf("add v1: %v", err)
	}
	// distinct created_at so promotion order is deterministic
	time.Sleep(5 * time.Millisecond)
	v2 := mkVersion(d.ID, "1.1", VersionFile{Filename: "a.csv", Checksum: "c2"})
	if err := g.AddVersion(v2); err != nil {
		t.Fatalf("add v2: %v", err)
	}

	if err := g.DeleteVersion(v1.ID); err != nil {
		t.Fatalf("delete default: %v", err)
	}

	survivor, err := g.GetVersion(v2.ID)
	if err != nil {
		t.Fatalf("get survivor: %v", err)
	}
	if !survivor.IsDefault {
		t.Fatal("survivor must be promoted to default")
	}
	if n := countDefaults(t, db, d.ID); n != 1 {
		t.Fatalf("defaults = %d, want 1", n)
	}

	var files int64
	if err := db.Model(&VersionFile{}).Where("version_id = ?", v1.ID).Count(&files).Error; err != nil {
		t.Fatalf("count files: %v", err)
	}
	if files != 0 {
		t.Fatalf("deleted version still has %d file rows", files)
	}
}

func TestDeleteVersion_LastVersion(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	v := mkVersion(d.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
	if err := g.AddVersion(v); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.DeleteVersion(v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := g.DefaultVersion(d.ID); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("got %v want ErrVersionNotFound", err)
	}
}

func TestConcurrentSetDefault_SingleWinner(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		v := mkVersion(d.ID, fmt.Sprintf("1.%d", i), VersionFile{Filename: "a.csv", Checksum: fmt.Sprintf("c%d", i)})
		if err := g.AddVersion(v); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		ids = append(ids, v.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.SetDefault(id); err != nil {
				t.Errorf("set default %s: %v", id, err)
			}
		}()
	}
	wg.Wait()

	if n := countDefaults(t, db, d.ID); n != 1 {
		t.Fatalf("defaults after concurrent swaps = %d, want 1", n)
	}
}

func TestConcurrentFirstVersions_SingleDefault(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	// race N creations on an empty dataset; exactly one may claim default
	const n = 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := mkVersion(d.ID, fmt.Sprintf("1.%d", i), VersionFile{Filename: "a.csv", Checksum: fmt.Sprintf("c%d", i)})
			if err := g.AddVersion(v); err != nil {
				t.Errorf("add %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	var total int64
	if err := db.Model(&DatasetVersion{}).Where("dataset_id = ?", d.ID).Count(&total).Error; err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if total != n {
		t.Fatalf("versions after concurrent creates = %d, want %d", total, n)
	}
	if got := countDefaults(t, db, d.ID); got != 1 {
		t.Fatalf("defaults after concurrent first creates = %d, want 1", got)
	}
}

func TestListVersions_CreationOrder(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	for i := 0; i < 3; i++ {
		v := mkVersion(d.ID, fmt.Sprintf("1.%d", i), VersionFile{Filename: "a.csv", Checksum: fmt.Sprintf("c%d", i)})
		if err := g.AddVersion(v); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	versions, err := g.ListVersions(d.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("got %d versions, want 3", len(versions))
	}
	for i, v := range versions {
		if want := fmt.Sprintf("1.%d", i); v.Version != want {
			t.Fatalf("versions[%d] = %s, want %s", i, v.Version, want)
		}
	}
}

func TestSetFlags(t *testing.T) {
	db := newTestDB(t)
	g := NewVersionGraph(db)
	d := seedDataset(t, db, "ds")

	v := mkVersion(d.ID, "1.0", VersionFile{Filename: "a.csv", Checksum: "c1"})
	if err := g.AddVersion(v); err != nil {
		t.Fatalf("add: %v", err)
	}

	yes := true
	updated, err := g.SetFlags(v.ID, &yes, nil)
	if err != nil {
		t.Fatalf("set flags: %v", err)
	}
	if !updated.IsDraft || updated.IsDeprecated {
		t.Fatalf("flags = draft:%v deprecated:%v, want draft only", updated.IsDraft, updated.IsDeprecated)
	}

	reloaded, err := g.GetVersion(v.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsDraft {
		t.Fatal("draft flag not persisted")
	}
	// flags never touch currency
	if !reloaded.IsDefault {
		t.Fatal("setting flags must not move the default")
	}
}
