package db

import (
	"context"
	"testing"
)

func TestConnFromContext_Empty(t *testing.T) {
	if tx := ConnFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil without a bound transaction, got %v", tx)
	}
}

func TestConnFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not a tx")
	if tx := ConnFromContext(ctx); tx != nil {
		t.Errorf("expected nil for a mistyped value, got %v", tx)
	}
}
