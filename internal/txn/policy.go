// Package txn runs units of work with per-class isolation, timeouts and
// bounded retries on transient storage failures.
package txn

import (
	"database/sql"
	"time"
)

// Class groups operations that share an isolation/timeout/retry policy.
type Class int

const (
	Default Class = iota
	Ledger
	Assignment
	Commit
	Payment
)

func (c Class) String() string {
	switch c {
	case Ledger:
		return "ledger"
	case Assignment:
		return "assignment"
	case Commit:
		return "commit"
	case Payment:
		return "payment"
	default:
		return "default"
	}
}

type Policy struct {
	Isolation sql.IsolationLevel
	Timeout   time.Duration
	// MaxRetries counts attempts after the first one.
	MaxRetries int
}

var policies = map[Class]Policy{
	Payment:    {Isolation: sql.LevelSerializable, Timeout: 30 * time.Second, MaxRetries: 3},
	Commit:     {Isolation: sql.LevelRepeatableRead, Timeout: 15 * time.Second, MaxRetries: 2},
	Assignment: {Isolation: sql.LevelRepeatableRead, Timeout: 10 * time.Second, MaxRetries: 2},
	Ledger:     {Isolation: sql.LevelRepeatableRead, Timeout: 10 * time.Second, MaxRetries: 2},
	Default:    {Isolation: sql.LevelReadCommitted, Timeout: 5 * time.Second, MaxRetries: 1},
}

func PolicyFor(c Class) Policy {
	if p, ok := policies[c]; ok {
		return p
	}
	return policies[Default]
}
