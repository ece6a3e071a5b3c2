package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeFeedLayouts(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	for _, in := range []string{
		"Thu, 10 Oct 2024 10:10:10 +0000",
		"Thu, 10 Oct 2024 10:10:10 UTC",
		"2024-10-10 10:10:10",
		" 2024-10-10T10:10:10.000Z ",
	} {
		got, ok := ParseTime(in)
		if !ok || !got.Equal(want) {
			t.Errorf("%q: got %v %v", in, got, ok)
		}
	}
	if _, ok := ParseTime("yesterday"); ok {
		t.Fatalf("expected failure")
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2024-03-01")
	if !ok || !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v %v", got, ok)
	}
	if _, ok := ParseDate("01/03/2024"); ok {
		t.Fatalf("expected failure for unsupported layout")
	}
}

func TestTruncateDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	in := time.Date(2024, 3, 1, 22, 0, 0, 0, loc) // 03:00 UTC on the 2nd
	if got := TruncateDay(in); !got.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestNormalizeTickers(t *testing.T) {
	got := NormalizeTickers([]string{" aapl", "MSFT", "", "AAPL ", "msft", "^gspc"})
	if len(got) != 3 || got[0] != "AAPL" || got[1] != "MSFT" || got[2] != "^GSPC" {
		t.Fatalf("got %v", got)
	}
}

func TestSplitListAndAtoiOr(t *testing.T) {
	if got := SplitList(" a, ,b,"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v", got)
	}
	if SplitList("") != nil {
		t.Fatalf("expected nil for empty input")
	}
	if AtoiOr("x", 7) != 7 || AtoiOr(" 12 ", 7) != 12 || AtoiOr("", 7) != 7 {
		t.Fatalf("AtoiOr")
	}
}
