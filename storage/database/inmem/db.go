// Package inmemdb stores the records in process memory. It backs the tests and the `memory` engine.
package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
	"github.com/trezcool/quizdesk/core/quiz"
	"github.com/trezcool/quizdesk/core/settings"
)

type (
	DB struct {
		quiz       *quizTable
		credential *credentialTable
		settings   *settingsTable
	}

	quizTable struct {
		mutex sync.RWMutex
		table map[string]*quiz.Quiz
	}

	credentialTable struct {
		mutex sync.RWMutex
		table map[string]*credential.Credential
	}

	settingsTable struct {
		mutex sync.RWMutex
		table map[string]*settings.CollegeSettings
	}
)

func Open() *DB {
	return &DB{
		quiz:       &quizTable{table: make(map[string]*quiz.Quiz)},
		credential: &credentialTable{table: make(map[string]*credential.Credential)},
		settings:   &settingsTable{table: make(map[string]*settings.CollegeSettings)},
	}
}

// Reset drops every record.
func (db *DB) Reset() {
	db.quiz.mutex.Lock()
	db.quiz.table = make(map[string]*quiz.Quiz)
	db.quiz.mutex.Unlock()

	db.credential.mutex.Lock()
	db.credential.table = make(map[string]*credential.Credential)
	db.credential.mutex.Unlock()

	db.settings.mutex.Lock()
	db.settings.table = make(map[string]*settings.CollegeSettings)
	db.settings.mutex.Unlock()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// sortBy sorts items with the orderings whose Field is found in `fields`, in order.
// Unknown fields are ignored.
func sortBy[T any](items []T, ordering []core.DBOrdering, fields map[string]func(a, b T) int) {
	cmps := make([]func(a, b T) int, 0, len(ordering))
	for _, ord := range ordering {
		cmp, ok := fields[ord.Field]
		if !ok {
			continue
		}
		if !ord.Ascending {
			asc := cmp
			cmp = func(a, b T) int { return -asc(a, b) }
		}
		cmps = append(cmps, cmp)
	}
	if len(cmps) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, cmp := range cmps {
			if c := cmp(items[i], items[j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
