package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/multierr"
)

func TestDumpFollowsJoinedErrors(t *testing.T) {
	first := New(CodeInvalidState, "calorie need unavailable")
	second := &pgconn.PgError{Code: "23505", ConstraintName: "idx_plan_orders_plan_week", TableName: "plan_orders"}
	joined := multierr.Append(
		fmt.Errorf("subscriber a: %w", first),
		fmt.Errorf("subscriber b: %w", second),
	)

	d := Dump(joined)
	if d.Code != CodeInvalidState {
		t.Fatalf("expected the first typed code, got %q", d.Code)
	}
	if d.PGCode != "23505" || d.PGConstraint != "idx_plan_orders_plan_week" || d.PGTable != "plan_orders" {
		t.Fatalf("postgres fields not extracted: %+v", d)
	}
	all := strings.Join(d.Chain, "\n")
	if !strings.Contains(all, "calorie need unavailable") || !strings.Contains(all, "*pgconn.PgError") {
		t.Fatalf("chain misses a branch:\n%s", all)
	}
	if !strings.HasPrefix(d.Chain[1], "  ") {
		t.Fatalf("joined branches should be indented, got %q", d.Chain[1])
	}
}

func TestDumpBoundsChain(t *testing.T) {
	var err error
	for i := 0; i < 100; i++ {
		err = multierr.Append(err, errors.New("boom"))
	}
	if got := len(Dump(err).Chain); got != maxChain {
		t.Fatalf("expected chain capped at %d, got %d", maxChain, got)
	}
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("nil error should dump empty, got %+v", d)
	}
}
