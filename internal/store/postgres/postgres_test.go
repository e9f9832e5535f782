package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsSerializationFailure(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	if !isSerializationFailure(serialization) {
		t.Fatalf("SQLSTATE 40001 not recognized as serialization failure")
	}
	if !isSerializationFailure(fmt.Errorf("create sale: %w", serialization)) {
		t.Fatalf("wrapped SQLSTATE 40001 not recognized")
	}
	if isSerializationFailure(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation misclassified as serialization failure")
	}
	if isSerializationFailure(nil) {
		t.Fatalf("nil error misclassified as serialization failure")
	}
	if isSerializationFailure(errors.New("connection reset")) {
		t.Fatalf("plain error misclassified as serialization failure")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "inventory_pkey"}
	if !isUniqueViolation(unique) {
		t.Fatalf("SQLSTATE 23505 not recognized as unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("upsert: %w", unique)) {
		t.Fatalf("wrapped SQLSTATE 23505 not recognized")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("serialization failure misclassified as unique violation")
	}
	if isUniqueViolation(errors.New("duplicate")) {
		t.Fatalf("plain error misclassified as unique violation")
	}
}
