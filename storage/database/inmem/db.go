package inmemdb

import (
	"sync"

	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/user"
)

type (
	// DB keeps every table in memory. Each table has its own lock, except the account tables
	// which share one so that an account is written at once.
	DB struct {
		accounts *accountTables
		payments *paymentTables
		sessions *sessionTable
	}

	accountTables struct {
		identities map[string]*identity.Identity
		users      map[string]*user.User
		students   map[string]*user.Student
		teachers   map[string]*user.Teacher
		mutex      sync.RWMutex
	}

	paymentTables struct {
		plans    map[string]*payment.Plan
		payments map[string]*payment.Payment
		mutex    sync.RWMutex
	}

	sessionTable struct {
		t     map[string]identity.Session
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		accounts: &accountTables{
			identities: make(map[string]*identity.Identity),
			users:      make(map[string]*user.User),
			students:   make(map[string]*user.Student),
			teachers:   make(map[string]*user.Teacher),
		},
		payments: &paymentTables{
			plans:    make(map[string]*payment.Plan),
			payments: make(map[string]*payment.Payment),
		},
		sessions: &sessionTable{t: make(map[string]identity.Session)},
	}
}
