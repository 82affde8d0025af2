// Package inmemdb keeps the app records in memory. Used by tests & local runs without postgres.
package inmemdb

import (
	"sync"

	"github.com/trezcool/ushauri/core/studyplan"
	"github.com/trezcool/ushauri/core/user"
)

type (
	DB struct {
		user      *userTable
		studyplan *studyplanTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	studyplanTables struct {
		sync.RWMutex
		schedules map[string]studyplan.Schedule
		backlogs  map[string]studyplan.Backlogs
		plans     map[string]studyplan.Plan
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		studyplan: &studyplanTables{
			schedules: make(map[string]studyplan.Schedule),
			backlogs:  make(map[string]studyplan.Backlogs),
			plans:     make(map[string]studyplan.Plan),
		},
	}
}
