package repository

import (
	"testing"
)

func TestDBDialectNameDefaultsToSQLite(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db dialect want sqlite got %s", got)
	}
}

func TestLikeOperatorDefaultsToLike(t *testing.T) {
	if got := likeOperator(nil); got != "LIKE" {
		t.Fatalf("nil db like operator want LIKE got %s", got)
	}
}
