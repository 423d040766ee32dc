package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"smartexpense/internal/core"
)

func expense(id string, amount string, category, note string) core.Expense {
	return core.Expense{
		ID:       id,
		Date:     core.NewDate(2024, 3, 1),
		Amount:   decimal.RequireFromString(amount),
		Category: category,
		Note:     note,
	}
}

func TestEncode(t *testing.T) {
	got := Encode(expense("a1", "12.50", "Food", "lunch"))
	if got != "a1,2024-03-01,12.5,Food,lunch" {
		t.Fatalf("Encode = %q", got)
	}

	got = Encode(expense("a2", "-3", "", ""))
	if got != "a2,2024-03-01,-3,," {
		t.Fatalf("Encode empty fields = %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []core.Expense{
		expense("a1", "12.50", "Food", "lunch"),
		expense("a2", "-7.25", "Refund", ""),
		expense("a3", "0", "", "nothing"),
		expense("a4", "1000000.0001", "Big Ticket", "a note with spaces; and semicolons"),
	}
	for _, want := range cases {
		got, err := Decode(Encode(want))
		if err != nil {
			t.Fatalf("%s: decode failed: %v", want.ID, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%s: round trip mismatch: got %+v want %+v", want.ID, got, want)
		}
	}
}

func TestEncodeEscapesDelimiterAndLineBreaks(t *testing.T) {
	e := expense("a1", "5", "Food, drinks", "first line\r\nsecond,line\nthird\rfourth")
	line := Encode(e)

	if strings.ContainsAny(line, "\r\n") {
		t.Fatalf("line contains a line break: %q", line)
	}
	if n := strings.Count(line, Delimiter); n != fieldCount-1 {
		t.Fatalf("expected %d delimiters, got %d in %q", fieldCount-1, n, line)
	}

	got, err := Decode(line)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Category != "Food; drinks" {
		t.Fatalf("category = %q", got.Category)
	}
	if got.Note != "first line second;line third fourth" {
		t.Fatalf("note = %q", got.Note)
	}
	if !got.Amount.Equal(e.Amount) || got.ID != e.ID {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestDecodeOptionalNote(t *testing.T) {
	got, err := Decode("a1,2024-01-05,10,Food")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Note != "" || got.Category != "Food" {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestDecodeKeepsExtraDelimitersInNote(t *testing.T) {
	got, err := Decode("a1,2024-01-05,10,Food,a,b,c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Note != "a,b,c" {
		t.Fatalf("note = %q", got.Note)
	}
}

func TestDecodeMalformed(t *testing.T) {
	lines := []string{
		"",
		"a1,2024-01-05",
		"a1,2024-01-05,10",
		",2024-01-05,10,Food,note",
		"a1,05-01-2024,10,Food,note",
		"a1,2024-01-05,ten,Food,note",
		Header,
	}
	for _, line := range lines {
		if _, err := Decode(line); !errors.Is(err, core.ErrMalformedLine) {
			t.Fatalf("%q: expected ErrMalformedLine, got %v", line, err)
		}
	}
}

func TestIsHeader(t *testing.T) {
	if !IsHeader("id,date,amount,category,note") || !IsHeader(" ID,Date,Amount,Category,Note ") {
		t.Fatal("expected header to be recognised")
	}
	if IsHeader("a1,2024-01-05,10,Food,note") {
		t.Fatal("data line treated as header")
	}
}
