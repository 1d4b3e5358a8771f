// Package chat turns raw message rows into display entries.
package chat

import (
	"sort"
	"strings"
	"time"

	"github.com/ashureev/relaychat/internal/domain"
	"github.com/ashureev/relaychat/internal/fieldresolve"
)

// Normalize maps rows to chat entries for currentUser.
//
// The sort key is chosen from the first row: its timestamp column if one can
// be resolved, otherwise its identifier column compared numerically. With
// neither, input order is kept. The sort is stable, so rows with equal keys
// keep their relative order. Display fields are resolved per row.
func Normalize(rows []domain.Row, currentUser string, f *Formatter) []domain.ChatEntry {
	if f == nil {
		f = NewFormatter(DefaultLocale, "")
	}

	sorted := make([]domain.Row, len(rows))
	copy(sorted, rows)
	if len(sorted) > 0 {
		sortRows(sorted, f)
	}

	entries := make([]domain.ChatEntry, 0, len(sorted))
	for _, row := range sorted {
		entries = append(entries, toEntry(row, currentUser, f))
	}
	return entries
}

func sortRows(rows []domain.Row, f *Formatter) {
	keys := rows[0].Keys()

	if tsKey, ok := fieldresolve.ResolveKey(keys, fieldresolve.RoleTimestamp); ok {
		// Unparseable or missing timestamps sort as the zero instant.
		instants := make([]time.Time, len(rows))
		for i, r := range rows {
			v, _ := r.Get(tsKey)
			instants[i], _ = f.ParseTime(v)
		}
		sortStableBy(rows, func(i, j int) bool { return instants[i].Before(instants[j]) })
		return
	}

	if idKey, ok := fieldresolve.ResolveKey(keys, fieldresolve.RoleIdentifier); ok {
		ids := make([]float64, len(rows))
		for i, r := range rows {
			v, _ := r.Get(idKey)
			ids[i] = numeric(v)
		}
		sortStableBy(rows, func(i, j int) bool { return ids[i] < ids[j] })
	}
}

// sortStableBy sorts rows with less evaluated against the original indexes,
// so precomputed keys stay aligned while elements move.
func sortStableBy(rows []domain.Row, less func(i, j int) bool) {
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return less(idx[a], idx[b]) })

	orig := make([]domain.Row, len(rows))
	copy(orig, rows)
	for i, j := range idx {
		rows[i] = orig[j]
	}
}

func toEntry(row domain.Row, currentUser string, f *Formatter) domain.ChatEntry {
	keys := row.Keys()
	var e domain.ChatEntry

	if k, ok := fieldresolve.ResolveKey(keys, fieldresolve.RoleIdentifier); ok {
		v, _ := row.Get(k)
		e.ID = Stringify(v)
	}
	if k, ok := fieldresolve.ResolveKey(keys, fieldresolve.RoleTimestamp); ok {
		v, _ := row.Get(k)
		e.Timestamp = f.Format(v)
	}
	if k, ok := fieldresolve.ResolveKey(keys, fieldresolve.RoleAuthor); ok {
		v, _ := row.Get(k)
		e.Author = Stringify(v)
	}
	if k, ok := fieldresolve.ResolveKey(keys, fieldresolve.RoleContent); ok {
		v, _ := row.Get(k)
		e.Content = Stringify(v)
	}

	e.IsOwnMessage = e.Author != "" && strings.EqualFold(e.Author, strings.TrimSpace(currentUser))
	return e
}
