package service

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Ning0612/Downsort/internal/config"
	"github.com/Ning0612/Downsort/internal/core/grouping"
	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/history"
	"github.com/Ning0612/Downsort/internal/testutil"
)

var now = time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)

type memRecorder struct {
	mu      sync.Mutex
	records []history.Record
}

func (r *memRecorder) Record(rec history.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecorder) last() history.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[len(r.records)-1]
}

func newService(t *testing.T, fs afero.Fs, root string) (*QueryService, *memRecorder) {
	t.Helper()

	cfg := config.Default()
	cfg.Scan.Root = root
	svc, err := NewQueryService(cfg)
	if err != nil {
		t.Fatalf("NewQueryService() error = %v", err)
	}
	if fs != nil {
		svc.SetFs(fs)
	}
	svc.SetClock(func() time.Time { return now })

	rec := &memRecorder{}
	svc.SetRecorder(rec)
	return svc, rec
}

func downloads() []testutil.File {
	return []testutil.File{
		{Name: "report.pdf", Content: "version one", Modified: now.Add(-2 * time.Hour)},
		{Name: "report (1).pdf", Content: "version two!", Modified: now.Add(-time.Hour)},
		{Name: "a.txt", Content: "same bytes", Modified: now.Add(-48 * time.Hour)},
		{Name: "a (1).txt", Content: "same bytes", Modified: now.Add(-24 * time.Hour)},
		{Name: "setup.EXE", Content: "MZ", Modified: now.AddDate(0, -3, 0)},
		{Name: "README", Content: "read me", Modified: now.AddDate(0, 0, -10)},
		{Name: "sub/nested.txt", Content: "deep", Modified: now},
	}
}

func TestNewQueryService_Invalid(t *testing.T) {
	if _, err := NewQueryService(nil); err == nil {
		t.Error("expected error for nil config")
	}

	cfg := config.Default()
	cfg.Fingerprint.Algorithm = "crc32"
	if _, err := NewQueryService(cfg); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestListAll(t *testing.T) {
	svc, rec := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")

	res, err := svc.ListAll(context.Background(), Request{})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}

	var got []string
	for _, f := range res.Files {
		got = append(got, f.Name)
	}
	want := []string{"README", "a (1).txt", "a.txt", "report (1).pdf", "report.pdf", "setup.EXE"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	if res.Root != "/dl" || !res.ScannedAt.Equal(now) {
		t.Errorf("root/scanned_at = %s/%v", res.Root, res.ScannedAt)
	}
	if res.Warnings == nil || len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want empty", res.Warnings)
	}

	r := rec.last()
	if r.Operation != OpListAll || r.Status != history.StatusSuccess || r.Files != 6 {
		t.Errorf("history record = %+v", r)
	}
}

func TestListAll_Idempotent(t *testing.T) {
	svc, _ := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")
	ctx := context.Background()

	first, err := svc.ListAll(ctx, Request{})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	second, err := svc.ListAll(ctx, Request{})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if !reflect.DeepEqual(first.Files, second.Files) {
		t.Errorf("results differ between calls")
	}
}

func TestListAll_FreshSnapshot(t *testing.T) {
	fs := testutil.MemTree(t, "/dl", testutil.File{Name: "a.txt", Content: "a"})
	svc, _ := newService(t, fs, "/dl")
	ctx := context.Background()

	first, _ := svc.ListAll(ctx, Request{})
	afero.WriteFile(fs, "/dl/b.txt", []byte("b"), 0644)
	second, _ := svc.ListAll(ctx, Request{})

	if len(first.Files) != 1 || len(second.Files) != 2 {
		t.Errorf("got %d then %d files, want 1 then 2", len(first.Files), len(second.Files))
	}
}

func TestListAll_RootOverride(t *testing.T) {
	fs := testutil.MemTree(t, "/dl", testutil.File{Name: "a.txt", Content: "a"})
	fs.MkdirAll("/other", 0755)
	afero.WriteFile(fs, "/other/x.bin", []byte("x"), 0644)

	svc, _ := newService(t, fs, "/dl")
	res, err := svc.ListAll(context.Background(), Request{Root: "/other"})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if res.Root != "/other" || len(res.Files) != 1 || res.Files[0].Name != "x.bin" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestListAll_MissingRoot(t *testing.T) {
	svc, rec := newService(t, afero.NewMemMapFs(), "/nope")

	_, err := svc.ListAll(context.Background(), Request{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	r := rec.last()
	if r.Status != history.StatusFailed || r.Error == "" {
		t.Errorf("history record = %+v", r)
	}
}

func TestListByExtension(t *testing.T) {
	svc, _ := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")

	res, err := svc.ListByExtension(context.Background(), Request{})
	if err != nil {
		t.Fatalf("ListByExtension() error = %v", err)
	}

	var keys []string
	total := 0
	for _, g := range res.Groups {
		keys = append(keys, g.Key)
		total += len(g.Files)
	}
	want := []string{"exe", "pdf", "txt", domain.NoExtension}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if total != 6 {
		t.Errorf("grouped %d files, want 6", total)
	}
}

func TestListByDate(t *testing.T) {
	svc, _ := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")

	res, err := svc.ListByDate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("ListByDate() error = %v", err)
	}

	var keys []string
	for _, g := range res.Groups {
		keys = append(keys, g.Key)
	}
	want := []string{grouping.BucketToday, grouping.BucketYesterday, grouping.BucketThisWeek, grouping.BucketThisMonth, grouping.BucketOlder}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func TestListByDate_ModeOverride(t *testing.T) {
	svc, _ := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")

	res, err := svc.ListByDate(context.Background(), Request{DateMode: grouping.DateModeDay})
	if err != nil {
		t.Fatalf("ListByDate() error = %v", err)
	}
	if res.Groups[0].Key != "2026-10-17" {
		t.Errorf("first key = %s, want 2026-10-17", res.Groups[0].Key)
	}

	if _, err := svc.ListByDate(context.Background(), Request{DateMode: "weekly"}); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestFindDuplicates(t *testing.T) {
	svc, rec := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")

	res, err := svc.FindDuplicates(context.Background(), Request{})
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(res.Groups))
	}

	// report cluster is larger: 11 + 12 bytes
	report, txt := res.Groups[0], res.Groups[1]
	if report.OriginalName != "report.pdf" || report.TotalSize != 23 {
		t.Errorf("first group = %s/%d", report.OriginalName, report.TotalSize)
	}
	if report.Files[1].DuplicateType != domain.DuplicateNumbered {
		t.Errorf("report (1).pdf role = %s, want numbered", report.Files[1].DuplicateType)
	}

	if txt.OriginalName != "a.txt" || txt.TotalSize != 20 {
		t.Errorf("second group = %s/%d", txt.OriginalName, txt.TotalSize)
	}
	if txt.Files[0].Name != "a.txt" || txt.Files[0].DuplicateType != domain.DuplicateOriginal {
		t.Errorf("a.txt = %+v", txt.Files[0])
	}
	if txt.Files[1].DuplicateType != domain.DuplicateExact {
		t.Errorf("a (1).txt role = %s, want exact", txt.Files[1].DuplicateType)
	}

	if res.ReclaimableBytes != 10 {
		t.Errorf("ReclaimableBytes = %d, want 10", res.ReclaimableBytes)
	}

	r := rec.last()
	if r.Operation != OpFindDuplicates || r.Groups != 2 {
		t.Errorf("history record = %+v", r)
	}
}

func TestFindDuplicates_Unrelated(t *testing.T) {
	fs := testutil.MemTree(t, "/dl",
		testutil.File{Name: "x.txt", Content: "x content"},
		testutil.File{Name: "y.txt", Content: "y stuff"},
	)
	svc, _ := newService(t, fs, "/dl")

	res, err := svc.FindDuplicates(context.Background(), Request{})
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if res.Groups == nil || len(res.Groups) != 0 {
		t.Errorf("groups = %v, want empty", res.Groups)
	}
}

func TestFindDuplicates_Recursive(t *testing.T) {
	fs := testutil.MemTree(t, "/dl",
		testutil.File{Name: "a.zip", Content: "zip"},
		testutil.File{Name: "old/a.zip", Content: "zip"},
	)

	svc, _ := newService(t, fs, "/dl")
	res, _ := svc.FindDuplicates(context.Background(), Request{})
	if len(res.Groups) != 0 {
		t.Errorf("non-recursive scan found %d groups", len(res.Groups))
	}

	svc.config.Scan.Recursive = true
	res, err := svc.FindDuplicates(context.Background(), Request{})
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if len(res.Groups) != 1 || len(res.Groups[0].Files) != 2 {
		t.Errorf("recursive scan groups = %+v", res.Groups)
	}
}

func TestFindDuplicates_Cancelled(t *testing.T) {
	svc, rec := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.FindDuplicates(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if rec.last().Status != history.StatusFailed {
		t.Errorf("cancelled query should record failed")
	}
}

func TestFindDuplicates_PermissionDenied(t *testing.T) {
	dir := testutil.OSTree(t,
		testutil.File{Name: "a.txt", Content: "same"},
		testutil.File{Name: "a (1).txt", Content: "same"},
		testutil.File{Name: "secret.txt", Content: "hidden"},
		testutil.File{Name: "secret (1).txt", Content: "hidden"},
	)
	testutil.Unreadable(t, filepath.Join(dir, "secret.txt"))

	svc, rec := newService(t, nil, dir)
	res, err := svc.FindDuplicates(context.Background(), Request{})
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(res.Groups))
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for the unreadable file")
	}

	for _, g := range res.Groups {
		for _, f := range g.Files {
			if f.Name == "secret.txt" && f.DuplicateType != domain.DuplicateUnknown {
				t.Errorf("unreadable file role = %s, want unknown", f.DuplicateType)
			}
		}
	}
	if rec.last().Status != history.StatusPartial {
		t.Errorf("status = %s, want partial", rec.last().Status)
	}
}

func TestQueries_Concurrent(t *testing.T) {
	svc, _ := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")
	ctx := context.Background()

	want, err := svc.FindDuplicates(ctx, Request{})
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.FindDuplicates(ctx, Request{})
			if err != nil {
				t.Errorf("FindDuplicates() error = %v", err)
				return
			}
			if !reflect.DeepEqual(got.Groups, want.Groups) {
				t.Errorf("concurrent result differs")
			}
		}()
	}
	wg.Wait()
}

type failingRecorder struct{}

func (failingRecorder) Record(history.Record) error { return errors.New("disk full") }

func TestRecorderFailureIgnored(t *testing.T) {
	svc, _ := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")
	svc.SetRecorder(failingRecorder{})

	if _, err := svc.ListAll(context.Background(), Request{}); err != nil {
		t.Errorf("recorder failure should not fail the query: %v", err)
	}
}

func TestHistoryStore(t *testing.T) {
	store, err := history.Open(t.TempDir())
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	defer store.Close()

	svc, _ := newService(t, testutil.MemTree(t, "/dl", downloads()...), "/dl")
	svc.SetRecorder(store)

	svc.ListByExtension(context.Background(), Request{})
	svc.ListAll(context.Background(), Request{Root: "/missing"})

	records, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	statuses := map[history.Status]bool{}
	for _, r := range records {
		statuses[r.Status] = true
	}
	if !statuses[history.StatusSuccess] || !statuses[history.StatusFailed] {
		t.Errorf("statuses = %v", statuses)
	}
}
