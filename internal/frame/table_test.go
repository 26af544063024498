package frame

import (
	"errors"
	"math"
	"testing"
	"time"
)

func days(n int) []time.Time {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestValidatePrices(t *testing.T) {
	ok := NewTable(days(3), []string{"BTC"})
	copy(ok.Columns[0], []float64{1, 2, 3})
	if err := ValidatePrices(ok); err != nil {
		t.Fatalf("expected valid table, got %v", err)
	}

	if err := ValidatePrices(NewTable(nil, []string{"BTC"})); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput for zero rows, got %v", err)
	}
	if err := ValidatePrices(NewTable(days(3), nil)); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput for zero columns, got %v", err)
	}

	bad := ok.Clone()
	bad.Columns[0][1] = 0
	if err := ValidatePrices(bad); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}

	unsorted := ok.Clone()
	unsorted.Index[2] = unsorted.Index[1]
	if err := ValidatePrices(unsorted); !errors.Is(err, ErrUnsortedIndex) {
		t.Errorf("expected ErrUnsortedIndex, got %v", err)
	}

	short := ok.Clone()
	short.Columns[0] = short.Columns[0][:2]
	if err := ValidatePrices(short); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestDropIncomplete(t *testing.T) {
	tbl := NewTable(days(4), []string{"A", "B"})
	copy(tbl.Columns[0], []float64{1, math.NaN(), 3, 4})
	copy(tbl.Columns[1], []float64{5, 6, 7, math.NaN()})

	out := DropIncomplete(tbl)
	if out.Rows() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.Rows())
	}
	if !out.Index[0].Equal(tbl.Index[0]) || !out.Index[1].Equal(tbl.Index[2]) {
		t.Errorf("unexpected index %v", out.Index)
	}
	if out.Columns[0][1] != 3 || out.Columns[1][1] != 7 {
		t.Errorf("unexpected values %v %v", out.Columns[0], out.Columns[1])
	}
	if !math.IsNaN(tbl.Columns[0][1]) {
		t.Errorf("input table must not be modified")
	}
}

func TestSignalTableAlignedWith(t *testing.T) {
	prices := NewTable(days(3), []string{"A"})
	sig := NewSignalTable(days(3), []string{"A"})
	if err := sig.AlignedWith(prices); err != nil {
		t.Fatalf("expected aligned, got %v", err)
	}

	other := NewSignalTable(days(3), []string{"B"})
	if err := other.AlignedWith(prices); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected symbol mismatch, got %v", err)
	}

	shifted := NewSignalTable(days(4)[1:], []string{"A"})
	if err := shifted.AlignedWith(prices); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected index mismatch, got %v", err)
	}
}

func TestPositionFloat(t *testing.T) {
	if Long.Float() != 1 || Short.Float() != -1 || Flat.Float() != 0 {
		t.Errorf("unexpected numeric positions")
	}
	if !math.IsNaN(Undefined.Float()) {
		t.Errorf("undefined must map to NaN")
	}
	if Undefined.Defined() {
		t.Errorf("undefined reported as defined")
	}
}
