package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"music-library/internal/logging"
	"music-library/internal/metrics"
	"music-library/internal/tree"
)

// RegisterFile inserts f, its dictionary words and its postings, and stores
// the new identifier in f.ID. The parent of f must already be stored.
func (d *Database) RegisterFile(ctx context.Context, q Querier, f *tree.File) (err error) {
	start := time.Now()
	defer func() { recordQuery("register_file", start, err) }()

	parent := f.Parent
	if parent == nil || (!parent.IsRoot() && !parent.Persisted()) {
		return fmt.Errorf("register %q: %w", f.RelPath(), ErrNoParentID)
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO files (parent, filename, filetype, isdir) VALUES (?, ?, ?, ?)`,
		parent.ID, f.Name(), f.Ext(), f.IsDir)
	if err != nil {
		return fmt.Errorf("insert file %q: %w", f.RelPath(), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = id

	words := d.tokenizer.Tokenize(f.Name())
	if len(words) == 0 {
		return nil
	}

	wordIDs := make([]any, 0, len(words))
	for _, word := range words {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO dictionary (word) VALUES (?) ON CONFLICT(word) DO NOTHING`, word); err != nil {
			return fmt.Errorf("insert word %q: %w", word, err)
		}
		var wordID int64
		if err := q.QueryRowContext(ctx,
			`SELECT id FROM dictionary WHERE word = ?`, word).Scan(&wordID); err != nil {
			return fmt.Errorf("lookup word %q: %w", word, err)
		}
		wordIDs = append(wordIDs, wordID)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("(?, ?),", len(wordIDs)), ",")
	args := make([]any, 0, 2*len(wordIDs))
	for _, wid := range wordIDs {
		args = append(args, wid, id)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO search (drowid, frowid) VALUES `+placeholders, args...); err != nil {
		return fmt.Errorf("insert postings for %q: %w", f.RelPath(), err)
	}

	metrics.DBRowsAffected.WithLabelValues("register_file").Observe(float64(1 + len(wordIDs)))
	return nil
}

// RemoveFile deletes the postings of f, every word left without postings
// anywhere in the index, and the files row itself. It returns the number of
// dictionary words collected.
func (d *Database) RemoveFile(ctx context.Context, q Querier, f *tree.File) (collected int, err error) {
	start := time.Now()
	defer func() { recordQuery("remove_file", start, err) }()

	rows, err := q.QueryContext(ctx, `SELECT DISTINCT drowid FROM search WHERE frowid = ?`, f.ID)
	if err != nil {
		return 0, fmt.Errorf("postings of %q: %w", f.RelPath(), err)
	}
	var wordIDs []int64
	for rows.Next() {
		var wid int64
		if err := rows.Scan(&wid); err != nil {
			rows.Close()
			return 0, err
		}
		wordIDs = append(wordIDs, wid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM search WHERE frowid = ?`, f.ID); err != nil {
		return 0, fmt.Errorf("delete postings of %q: %w", f.RelPath(), err)
	}

	// a word is garbage only when no other file still posts it
	for _, wid := range wordIDs {
		res, err := q.ExecContext(ctx, `
			DELETE FROM dictionary
			WHERE id = ? AND NOT EXISTS (SELECT 1 FROM search WHERE drowid = dictionary.id)`, wid)
		if err != nil {
			return collected, fmt.Errorf("collect word %d: %w", wid, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			collected += int(n)
		}
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, f.ID); err != nil {
		return collected, fmt.Errorf("delete file %q: %w", f.RelPath(), err)
	}

	if collected > 0 {
		metrics.DictionaryWordsCollected.Add(float64(collected))
	}
	metrics.DBRowsAffected.WithLabelValues("remove_file").Observe(float64(1 + len(wordIDs) + collected))
	f.ID = tree.NoID
	return collected, nil
}

// RemoveRecursive removes f and all of its stored descendants breadth first.
// Children of a node are read just before the node is removed. Passing the
// root clears the whole tree but leaves the root itself. It returns the
// number of files rows removed.
func (d *Database) RemoveRecursive(ctx context.Context, q Querier, f *tree.File) (removed int, err error) {
	queue := []*tree.File{f}
	collected := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		node := queue[0]
		queue = queue[1:]

		if node.IsDir {
			children, err := d.Children(ctx, q, node)
			if err != nil {
				return removed, err
			}
			queue = append(queue, children...)
		}

		if node.IsRoot() || !node.Persisted() {
			continue
		}
		n, err := d.RemoveFile(ctx, q, node)
		if err != nil {
			return removed, err
		}
		collected += n
		removed++
	}

	logging.Debug("Removed %d entries below %q, collected %d words", removed, f.RelPath(), collected)
	return removed, nil
}
