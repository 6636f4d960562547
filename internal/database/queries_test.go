package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"music-library/internal/mediatypes"
	"music-library/internal/tree"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		query     string
		wantTerms string
		wantMode  Mode
	}{
		{"black dog", "black dog", ModeAll},
		{"!f black", "black", ModeFiles},
		{"black !f", "black", ModeFiles},
		{"!d live", "live", ModeDirs},
		{"live !d", "live", ModeDirs},
		{"!d", "", ModeDirs},
		{"!fblack", "!fblack", ModeAll},
		{"", "", ModeAll},
	}

	for _, tt := range tests {
		terms, mode := ParseQuery(tt.query)
		if terms != tt.wantTerms || mode != tt.wantMode {
			t.Errorf("ParseQuery(%q) = (%q, %v), want (%q, %v)", tt.query, terms, mode, tt.wantTerms, tt.wantMode)
		}
	}
}

func TestModeString(t *testing.T) {
	if ModeAll.String() != "normal" || ModeFiles.String() != "files" || ModeDirs.String() != "dirs" {
		t.Error("Mode labels do not match the metrics labels")
	}
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
		ok     bool
	}{
		{"abc", "abd", true},
		{"a", "b", true},
		{"a\xff", "b", true},
		{"\xff\xff", "", false},
	}
	for _, tt := range tests {
		got, ok := prefixUpperBound(tt.prefix)
		if got != tt.want || ok != tt.ok {
			t.Errorf("prefixUpperBound(%q) = (%q, %v), want (%q, %v)", tt.prefix, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRankByFrequency(t *testing.T) {
	tests := []struct {
		name  string
		ids   []int64
		limit int
		want  []int64
	}{
		{"dedup keeps order", []int64{3, 1, 3, 2}, 10, []int64{3, 1, 2}},
		{"under limit ranks by count", []int64{1, 2, 2}, 10, []int64{2, 1}},
		{"over limit ranks by count", []int64{1, 2, 3, 2, 3, 3}, 2, []int64{3, 2}},
		{"ties keep first seen", []int64{5, 4, 6}, 2, []int64{5, 4}},
		{"no limit", []int64{1, 2, 2}, 0, []int64{2, 1}},
		{"empty", nil, 5, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RankByFrequency(tt.ids, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("RankByFrequency() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("RankByFrequency() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

// sampleLibrary stores root/a.mp3, root/sub and root/sub/b.mp3.
func sampleLibrary(t *testing.T, db *Database) (a, sub, b *tree.File) {
	t.Helper()
	root := tree.NewRoot()
	a = register(t, db, root, "a.mp3", false)
	sub = register(t, db, root, "sub", true)
	b = register(t, db, sub, "b.mp3", false)
	if err := db.RecountOccurrences(context.Background()); err != nil {
		t.Fatalf("RecountOccurrences() failed: %v", err)
	}
	return a, sub, b
}

func TestSearch(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	_, sub, b := sampleLibrary(t, db)

	entries, err := db.Search(ctx, "b", 0)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Search(b) = %v, want one entry", entries)
	}
	if entries[0].ID != b.ID || entries[0].Path != "sub/b.mp3" || entries[0].IsDirectory {
		t.Errorf("Search(b) = %+v", entries[0])
	}

	entries, err = db.Search(ctx, "SU", 0)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != sub.ID || !entries[0].IsDirectory {
		t.Errorf("Search(SU) = %+v, want the sub directory", entries)
	}
}

func TestSearchModes(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	root := tree.NewRoot()
	live := register(t, db, root, "live", true)
	song := register(t, db, live, "live at leeds.mp3", false)

	dirs, err := db.Search(ctx, "!d live", 0)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(dirs) != 1 || dirs[0].ID != live.ID {
		t.Errorf("Search(!d live) = %+v", dirs)
	}

	files, err := db.Search(ctx, "live !f", 0)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(files) != 1 || files[0].ID != song.ID {
		t.Errorf("Search(live !f) = %+v", files)
	}

	both, err := db.Search(ctx, "live", 0)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(both) != 2 {
		t.Errorf("Search(live) returned %d entries, want 2", len(both))
	}
}

func TestSearchRanksByMatchedTerms(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	root := tree.NewRoot()
	register(t, db, root, "black.mp3", false)
	both := register(t, db, root, "black dog.mp3", false)
	register(t, db, root, "dog.mp3", false)

	entries, err := db.Search(ctx, "black dog", 1)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != both.ID {
		t.Errorf("Search(black dog, 1) = %+v, want %q", entries, "black dog.mp3")
	}

	for _, q := range []string{"dog black", "black dog"} {
		entries, err = db.Search(ctx, q, 10)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", q, err)
		}
		if len(entries) != 3 || entries[0].ID != both.ID {
			t.Errorf("Search(%q, 10) = %+v, want %q first", q, entries, "black dog.mp3")
		}
	}
}

func TestSearchAccentInsensitive(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	f := register(t, db, tree.NewRoot(), "Motörhead - Ace of Spades.flac", false)

	for _, q := range []string{"motorhead", "motörhead", "moto", "spades"} {
		entries, err := db.Search(ctx, q, 0)
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", q, err)
		}
		if len(entries) != 1 || entries[0].ID != f.ID {
			t.Errorf("Search(%q) = %+v", q, entries)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	db, _ := setupTestDB(t)
	sampleLibrary(t, db)

	entries, err := db.Search(context.Background(), "   ", 0)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Search(blank) = %v, want none", entries)
	}
}

func TestEntriesFromFileIDs(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	a, sub, b := sampleLibrary(t, db)

	entries, err := db.EntriesFromFileIDs(ctx, nil, []int64{b.ID, 9999, a.ID, sub.ID, b.ID})
	if err != nil {
		t.Fatalf("EntriesFromFileIDs() failed: %v", err)
	}

	want := []MediaEntry{
		{ID: b.ID, Path: filepath.Join("sub", "b.mp3"), Type: mediatypes.FileTypeAudio},
		{ID: a.ID, Path: "a.mp3", Type: mediatypes.FileTypeAudio},
		{ID: sub.ID, Path: "sub", IsDirectory: true, Type: mediatypes.FileTypeFolder},
	}
	if len(entries) != len(want) {
		t.Fatalf("EntriesFromFileIDs() = %+v, want %+v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entries[%d] = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestEntriesFromFileIDsManyChunks(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	root := tree.NewRoot()

	tx, err := db.BeginBatch(ctx)
	if err != nil {
		t.Fatalf("BeginBatch() failed: %v", err)
	}
	dir := tree.New(root, "many", true)
	if err := db.RegisterFile(ctx, tx, dir); err != nil {
		t.Fatalf("RegisterFile() failed: %v", err)
	}
	var ids []int64
	for i := 0; i < maxInClause+20; i++ {
		f := tree.New(dir, "track"+string(rune('a'+i%26))+".mp3", false)
		if err := db.RegisterFile(ctx, tx, f); err != nil {
			t.Fatalf("RegisterFile() failed: %v", err)
		}
		ids = append(ids, f.ID)
	}
	if err := db.EndBatch(tx, nil); err != nil {
		t.Fatalf("EndBatch() failed: %v", err)
	}

	entries, err := db.EntriesFromFileIDs(ctx, db.DB(), ids)
	if err != nil {
		t.Fatalf("EntriesFromFileIDs() failed: %v", err)
	}
	if len(entries) != len(ids) {
		t.Errorf("resolved %d entries, want %d", len(entries), len(ids))
	}
}

func TestRandomFileEntries(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	entries, err := db.RandomFileEntries(ctx, 5)
	if err != nil || len(entries) != 0 {
		t.Errorf("RandomFileEntries() on empty store = %v, %v", entries, err)
	}

	sub := register(t, db, tree.NewRoot(), "sub", true)
	b := register(t, db, sub, "b.mp3", false)

	for i := 0; i < 10; i++ {
		entries, err := db.RandomFileEntries(ctx, 2)
		if err != nil {
			t.Fatalf("RandomFileEntries() failed: %v", err)
		}
		if len(entries) > 1 {
			t.Fatalf("RandomFileEntries(2) returned %d entries, want at most 1", len(entries))
		}
		if len(entries) == 1 && (entries[0].ID != b.ID || entries[0].IsDirectory) {
			t.Errorf("RandomFileEntries(2) = %+v, want only %q", entries, "sub/b.mp3")
		}
	}
}

func TestRandomFileEntriesCapsCount(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	root := tree.NewRoot()
	for i := 0; i < MaxRandomCount+20; i++ {
		register(t, db, root, fmt.Sprintf("track %03d.mp3", i), false)
	}

	entries, err := db.RandomFileEntries(ctx, 1<<40)
	if err != nil {
		t.Fatalf("RandomFileEntries() failed: %v", err)
	}
	if len(entries) == 0 || len(entries) > MaxRandomCount {
		t.Errorf("RandomFileEntries(1<<40) returned %d entries, want 1..%d", len(entries), MaxRandomCount)
	}
}

func TestSampleIDs(t *testing.T) {
	all := sampleIDs(10, 12, 5)
	if len(all) != 3 || all[0] != 10 || all[2] != 12 {
		t.Errorf("sampleIDs(10, 12, 5) = %v, want [10 11 12]", all)
	}

	picked := sampleIDs(1, 1000, 50)
	if len(picked) != 50 {
		t.Fatalf("sampleIDs() returned %d ids, want 50", len(picked))
	}
	seen := make(map[int64]bool)
	for _, id := range picked {
		if id < 1 || id > 1000 {
			t.Errorf("id %d out of range", id)
		}
		if seen[id] {
			t.Errorf("id %d sampled twice", id)
		}
		seen[id] = true
	}
}

func TestIDRange(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if _, _, ok, err := db.IDRange(ctx); err != nil || ok {
		t.Errorf("IDRange() on empty store = ok %v, err %v", ok, err)
	}

	a, _, b := sampleLibrary(t, db)
	lo, hi, ok, err := db.IDRange(ctx)
	if err != nil || !ok || lo != a.ID || hi != b.ID {
		t.Errorf("IDRange() = (%d, %d, %v, %v), want (%d, %d)", lo, hi, ok, err, a.ID, b.ID)
	}
}
