package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"music-library/internal/logging"
	"music-library/internal/mediatypes"
	"music-library/internal/metrics"
	"music-library/internal/tree"
)

const (
	// DefaultSearchLimit caps the entries returned by Search.
	DefaultSearchLimit = 400
	// DefaultSearchTermLimit caps the candidates fetched for one query term.
	DefaultSearchTermLimit = 400
	// MaxRandomCount caps the entries sampled by one RandomFileEntries call.
	MaxRandomCount = 100

	// SQLite limits bound parameters per statement
	maxInClause = 500
	// parent chains deeper than this are treated as corrupt
	maxPathDepth = 4096
)

// ParseQuery strips a "!f" (files only) or "!d" (directories only) marker
// given as a prefix or suffix and returns the remaining terms.
func ParseQuery(query string) (string, Mode) {
	markers := []struct {
		token string
		mode  Mode
	}{
		{"!f", ModeFiles},
		{"!d", ModeDirs},
	}
	for _, m := range markers {
		switch {
		case query == m.token:
			return "", m.mode
		case strings.HasPrefix(query, m.token+" "):
			return query[len(m.token)+1:], m.mode
		case strings.HasSuffix(query, " "+m.token):
			return query[:len(query)-len(m.token)-1], m.mode
		}
	}
	return query, ModeAll
}

// prefixUpperBound returns the smallest string greater than every string
// starting with prefix, or false when no such bound exists.
func prefixUpperBound(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// FetchFileIDs returns, for each term in order, the identifiers of files
// posted against a word starting with that term, most frequent words first
// and at most perTermLimit per term. An identifier matched by several terms
// appears once per term.
func (d *Database) FetchFileIDs(ctx context.Context, terms []string, perTermLimit int, mode Mode) (ids []int64, err error) {
	start := time.Now()
	defer func() { recordQuery("fetch_file_ids", start, err) }()

	if perTermLimit <= 0 {
		perTermLimit = d.termLimit
	}

	var filter string
	switch mode {
	case ModeFiles:
		filter = ` JOIN files f ON f.id = s.frowid AND f.isdir = 0`
	case ModeDirs:
		filter = ` JOIN files f ON f.id = s.frowid AND f.isdir = 1`
	}

	for _, term := range terms {
		if term == "" {
			continue
		}
		where := `d.word >= ?`
		args := []any{term}
		if upper, ok := prefixUpperBound(term); ok {
			where += ` AND d.word < ?`
			args = append(args, upper)
		}
		args = append(args, perTermLimit)

		query := `
			SELECT s.frowid, MAX(d.occurrences) AS occ
			FROM dictionary d
			JOIN search s ON s.drowid = d.id` + filter + `
			WHERE ` + where + `
			GROUP BY s.frowid
			ORDER BY occ DESC, s.frowid
			LIMIT ?`

		rows, qErr := d.db.QueryContext(ctx, query, args...)
		if qErr != nil {
			return nil, fmt.Errorf("search term %q: %w", term, qErr)
		}
		for rows.Next() {
			var id, occ int64
			if err := rows.Scan(&id, &occ); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan failed: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// RankByFrequency removes duplicate identifiers and orders the rest by how
// often each one occurred in ids, most first; ties keep first-seen order.
// A positive limit cuts the result to limit entries.
func RankByFrequency(ids []int64, limit int) []int64 {
	counts := make(map[int64]int, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if counts[id] == 0 {
			unique = append(unique, id)
		}
		counts[id]++
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return counts[unique[i]] > counts[unique[j]]
	})
	if limit > 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}

// EntriesFromFileIDs resolves identifiers to relative paths. Parent chains
// are followed one frontier of ids at a time so the number of queries grows
// with tree depth, not with the number of ids. Unknown identifiers and rows
// whose chain does not reach the root are dropped; the rest keep the order
// of ids.
func (d *Database) EntriesFromFileIDs(ctx context.Context, q Querier, ids []int64) (entries []MediaEntry, err error) {
	start := time.Now()
	defer func() { recordQuery("entries_from_ids", start, err) }()

	if q == nil {
		q = d.db
	}

	rows := make(map[int64]fileRow)
	type pending struct {
		id       int64
		isDir    bool
		segments []string
		next     int64
		ok       bool
	}

	resolving := make([]*pending, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		resolving = append(resolving, &pending{id: id, next: id, ok: true})
	}

	for depth := 0; ; depth++ {
		var frontier []int64
		inFrontier := make(map[int64]bool)
		for _, p := range resolving {
			if !p.ok || p.next == tree.RootID {
				continue
			}
			if _, cached := rows[p.next]; !cached && !inFrontier[p.next] {
				inFrontier[p.next] = true
				frontier = append(frontier, p.next)
			}
		}

		if err := d.loadRows(ctx, q, frontier, rows); err != nil {
			return nil, err
		}

		active := 0
		for _, p := range resolving {
			if !p.ok || p.next == tree.RootID {
				continue
			}
			row, found := rows[p.next]
			if !found || depth > maxPathDepth {
				p.ok = false
				continue
			}
			if p.next == p.id {
				p.isDir = row.isDir
			}
			p.segments = append(p.segments, row.basename)
			p.next = row.parent
			if p.next != tree.RootID {
				active++
			}
		}
		if active == 0 {
			break
		}
	}

	entries = make([]MediaEntry, 0, len(resolving))
	for _, p := range resolving {
		if !p.ok {
			continue
		}
		for i, j := 0, len(p.segments)-1; i < j; i, j = i+1, j-1 {
			p.segments[i], p.segments[j] = p.segments[j], p.segments[i]
		}
		relpath := path.Join(p.segments...)
		entries = append(entries, MediaEntry{
			ID:          p.id,
			Path:        relpath,
			IsDirectory: p.isDir,
			Type:        mediatypes.Classify(relpath, p.isDir),
		})
	}
	return entries, nil
}

// loadRows reads the given files rows into dst in chunks.
func (d *Database) loadRows(ctx context.Context, q Querier, ids []int64, dst map[int64]fileRow) error {
	for len(ids) > 0 {
		n := min(len(ids), maxInClause)
		chunk := ids[:n]
		ids = ids[n:]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := q.QueryContext(ctx,
			`SELECT id, parent, filename, filetype, isdir FROM files WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("resolve query failed: %w", err)
		}
		for rows.Next() {
			var (
				id                 int64
				r                  fileRow
				filename, filetype string
			)
			if err := rows.Scan(&id, &r.parent, &filename, &filetype, &r.isDir); err != nil {
				rows.Close()
				return fmt.Errorf("scan failed: %w", err)
			}
			r.basename = filename + filetype
			dst[id] = r
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Search tokenizes query, fetches candidates per term, ranks them and
// resolves at most maxResults entries. The order is by match frequency and
// is not a relevance ranking.
func (d *Database) Search(ctx context.Context, query string, maxResults int) (entries []MediaEntry, err error) {
	terms, mode := ParseQuery(strings.TrimSpace(query))
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SearchQueriesTotal.WithLabelValues(mode.String(), status).Inc()
	}()

	if maxResults <= 0 {
		maxResults = DefaultSearchLimit
	}

	tokens := d.tokenizer.Tokenize(terms)
	if len(tokens) == 0 {
		return []MediaEntry{}, nil
	}

	candidates, err := d.FetchFileIDs(ctx, tokens, d.termLimit, mode)
	if err != nil {
		return nil, err
	}
	metrics.SearchCandidates.Observe(float64(len(candidates)))

	ranked := RankByFrequency(candidates, maxResults)
	entries, err = d.EntriesFromFileIDs(ctx, d.db, ranked)
	if err != nil {
		return nil, err
	}
	metrics.SearchResultsReturned.Observe(float64(len(entries)))

	logging.Debug("Search %q (%s): %d terms, %d candidates, %d results",
		query, mode, len(tokens), len(candidates), len(entries))
	return entries, nil
}

// IDRange returns the smallest and largest files identifier in use. ok is
// false when the table is empty.
func (d *Database) IDRange(ctx context.Context) (lo, hi int64, ok bool, err error) {
	start := time.Now()
	defer func() { recordQuery("id_range", start, err) }()

	var minID, maxID sql.NullInt64
	if err = d.db.QueryRowContext(ctx, `SELECT MIN(id), MAX(id) FROM files`).Scan(&minID, &maxID); err != nil {
		return 0, 0, false, err
	}
	if !minID.Valid || !maxID.Valid {
		return 0, 0, false, nil
	}
	return minID.Int64, maxID.Int64, true, nil
}

// sampleIDs draws count distinct identifiers from [lo, hi], or all of them
// when the range is not larger than count.
func sampleIDs(lo, hi int64, count int) []int64 {
	span := hi - lo + 1
	if span <= int64(count) {
		out := make([]int64, 0, span)
		for id := lo; id <= hi; id++ {
			out = append(out, id)
		}
		return out
	}

	picked := roaring64.New()
	out := make([]int64, 0, count)
	for len(out) < count {
		id := lo + rand.Int64N(span)
		if picked.CheckedAdd(uint64(id)) {
			out = append(out, id)
		}
	}
	return out
}

// RandomFileEntries samples up to count files, at most MaxRandomCount,
// without scanning the table.
// Identifiers that were deleted or belong to directories are dropped, so
// fewer than count entries may be returned.
func (d *Database) RandomFileEntries(ctx context.Context, count int) (entries []MediaEntry, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SearchQueriesTotal.WithLabelValues("random", status).Inc()
	}()

	if count <= 0 {
		return []MediaEntry{}, nil
	}
	count = min(count, MaxRandomCount)

	lo, hi, ok, err := d.IDRange(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []MediaEntry{}, nil
	}

	resolved, err := d.EntriesFromFileIDs(ctx, d.db, sampleIDs(lo, hi, count))
	if err != nil {
		return nil, err
	}

	entries = resolved[:0]
	for _, e := range resolved {
		if !e.IsDirectory {
			entries = append(entries, e)
		}
	}
	metrics.SearchResultsReturned.Observe(float64(len(entries)))
	return entries, nil
}
