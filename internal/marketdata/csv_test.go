package marketdata

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"factor-backtest/internal/frame"
)

func TestWriteCSV_Format(t *testing.T) {
	tbl := frame.NewTable([]time.Time{day(0), day(1)}, []string{"A", "B"})
	tbl.Columns[0] = []float64{1.5, 2}
	tbl.Columns[1] = []float64{math.NaN(), 0.25}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("WriteCSV returned error: %v", err)
	}
	want := "Date,A,B\n2023-01-01,1.5,\n2023-01-02,2,0.25\n"
	if buf.String() != want {
		t.Errorf("got %q want %q", buf.String(), want)
	}

	back, err := ReadCSV(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ReadCSV returned error: %v", err)
	}
	if !math.IsNaN(back.Columns[1][0]) || back.Columns[0][0] != 1.5 {
		t.Errorf("unexpected parsed table %+v", back)
	}
}

func TestReadCSV_BadInput(t *testing.T) {
	cases := []string{
		"Time,A\n2023-01-01,1\n",
		"Date,A\nnot-a-date,1\n",
		"Date,A\n2023-01-01,abc\n",
	}
	for _, in := range cases {
		if _, err := ReadCSV(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestCSVCache_Miss(t *testing.T) {
	cache := &CSVCache{Dir: t.TempDir()}
	if _, err := cache.Read("missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
	parquetCache := &ParquetCache{Dir: t.TempDir()}
	if _, err := parquetCache.Read("missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}
