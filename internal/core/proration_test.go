package core

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func month(y int, m time.Month) Month {
	return Month{Year: y, Month: m}
}

func bounded(issued, end time.Time, cents int64) Expense {
	return Expense{ID: 1, Issued: issued, End: end, InBase: Money{Cents: cents}, Category: Category{ID: 1}}
}

func TestAmountInMonth(t *testing.T) {
	tests := []struct {
		name       string
		convention Convention
		issued     time.Time
		end        time.Time
		total      int64
		target     Month
		want       int64
	}{
		{"start inside, end after (start day excluded)", ExclusiveStartDay, day(2023, 1, 20), day(2023, 2, 9), 3100, month(2023, 1), 1624},
		{"start inside, end after (start day included)", InclusiveStartDay, day(2023, 1, 20), day(2023, 2, 9), 3100, month(2023, 1), 1771},
		{"start before, end inside", ExclusiveStartDay, day(2023, 1, 20), day(2023, 2, 9), 3100, month(2023, 2), 1329},
		{"start before, end inside (inclusive)", InclusiveStartDay, day(2023, 1, 20), day(2023, 2, 9), 3100, month(2023, 2), 1329},
		{"before range", ExclusiveStartDay, day(2023, 1, 20), day(2023, 2, 9), 3100, month(2022, 12), 0},
		{"after range", ExclusiveStartDay, day(2023, 1, 20), day(2023, 2, 9), 3100, month(2023, 3), 0},
		{"spans whole month", ExclusiveStartDay, day(2023, 1, 31), day(2023, 3, 1), 3000, month(2023, 2), 2800},
		{"spans whole leap month", ExclusiveStartDay, day(2024, 1, 31), day(2024, 3, 1), 3100, month(2024, 2), 2900},
		{"starts on last day, excluded", ExclusiveStartDay, day(2023, 1, 31), day(2023, 3, 1), 3000, month(2023, 1), 0},
		{"starts on last day, included", InclusiveStartDay, day(2023, 1, 31), day(2023, 3, 1), 3000, month(2023, 1), 100},
		{"ends on first day", ExclusiveStartDay, day(2023, 1, 31), day(2023, 3, 1), 3000, month(2023, 3), 100},
		{"within one month", ExclusiveStartDay, day(2023, 5, 3), day(2023, 5, 20), 1800, month(2023, 5), 1800},
		{"single day", ExclusiveStartDay, day(2023, 3, 15), day(2023, 3, 15), 500, month(2023, 3), 500},
		{"half rounds to even (down)", ExclusiveStartDay, day(2023, 1, 31), day(2023, 2, 1), 5, month(2023, 2), 2},
		{"half rounds to even (up)", ExclusiveStartDay, day(2023, 1, 31), day(2023, 2, 1), 7, month(2023, 2), 4},
		{"time of day floors the day count", ExclusiveStartDay, time.Date(2023, 1, 20, 15, 0, 0, 0, time.UTC), day(2023, 2, 9), 2000, month(2023, 2), 900},
		{"negative amounts prorate too", ExclusiveStartDay, day(2023, 5, 3), day(2023, 5, 20), -1800, month(2023, 5), -1800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Prorator{Convention: tt.convention}
			got, err := p.AmountInMonth(OrdinalOf(tt.issued), tt.issued, OrdinalOf(tt.end), tt.end, tt.target, tt.total)
			if err != nil {
				t.Fatalf("AmountInMonth() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("AmountInMonth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAmountInMonthErrors(t *testing.T) {
	p := Prorator{}
	start, end := day(2023, 1, 20), day(2023, 1, 10)
	if _, err := p.AmountInMonth(OrdinalOf(start), start, OrdinalOf(end), end, month(2023, 1), 100); !errors.Is(err, ErrInvalidExpenseInterval) {
		t.Fatalf("expected ErrInvalidExpenseInterval, got %v", err)
	}

	start, end = day(2023, 1, 1), day(2023, 1, 2)
	if _, err := p.AmountInMonth(OrdinalOf(start), start, OrdinalOf(end), end, month(2023, 1), MaxExactCents+1); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
}

func sumOverMonths(t *testing.T, p Prorator, e Expense, from Month, n int) int64 {
	t.Helper()
	var sum int64
	for i := 0; i < n; i++ {
		a, err := p.FractionalAmountInMonth(e, from.Add(i))
		if err != nil {
			t.Fatalf("month %s: %v", from.Add(i), err)
		}
		sum += a
	}
	return sum
}

func TestConservation(t *testing.T) {
	e := bounded(day(2023, 3, 1), day(2023, 6, 30), 10000)

	t.Run("inclusive start conserves the amount", func(t *testing.T) {
		// 31+30+31+30 days -> 2541 + 2459 + 2541 + 2459
		if got := sumOverMonths(t, Prorator{Convention: InclusiveStartDay}, e, month(2023, 1), 8); got != 10000 {
			t.Fatalf("sum = %d, want 10000", got)
		}
	})

	t.Run("exclusive start drops the issue day", func(t *testing.T) {
		// March counts 30 of 122 days, so round(10000/122) = 82 is never attributed.
		if got := sumOverMonths(t, Prorator{}, e, month(2023, 1), 8); got != 10000-82 {
			t.Fatalf("sum = %d, want %d", got, 10000-82)
		}
	})

	t.Run("example split adds up with inclusive start", func(t *testing.T) {
		e := bounded(day(2023, 1, 20), day(2023, 2, 9), 3100)
		if got := sumOverMonths(t, Prorator{Convention: InclusiveStartDay}, e, month(2023, 1), 2); got != 3100 {
			t.Fatalf("sum = %d, want 3100", got)
		}
		if got := sumOverMonths(t, Prorator{}, e, month(2023, 1), 2); got != 1624+1329 {
			t.Fatalf("sum = %d, want %d", got, 1624+1329)
		}
	})

	t.Run("rounding stays within one unit per month", func(t *testing.T) {
		e := bounded(day(2023, 1, 31), day(2023, 2, 1), 7)
		got := sumOverMonths(t, Prorator{Convention: InclusiveStartDay}, e, month(2023, 1), 2)
		if diff := got - 7; diff < -2 || diff > 2 {
			t.Fatalf("sum = %d drifts more than one unit per month from 7", got)
		}
	})
}

func TestSingleDayExpense(t *testing.T) {
	e := bounded(day(2023, 3, 15), day(2023, 3, 15), 500)
	p := Prorator{}
	for i := -3; i <= 3; i++ {
		target := month(2023, 3).Add(i)
		got, err := p.FractionalAmountInMonth(e, target)
		if err != nil {
			t.Fatalf("%s: %v", target, err)
		}
		want := int64(0)
		if i == 0 {
			want = 500
		}
		if got != want {
			t.Errorf("%s: got %d, want %d", target, got, want)
		}
	}
}

func TestRepeatingAmountInMonth(t *testing.T) {
	tests := []struct {
		name       string
		convention Convention
		expense    Expense
		target     Month
		want       int64
	}{
		{"every third month, off month", ExclusiveStartDay, Expense{Issued: day(2023, 1, 5), RepeatMonths: 3, InBase: Money{Cents: 900}}, month(2023, 3), 0},
		{"every third month, due month", ExclusiveStartDay, Expense{Issued: day(2023, 1, 5), RepeatMonths: 3, InBase: Money{Cents: 900}}, month(2023, 4), 900},
		{"every third month, first occurrence", ExclusiveStartDay, Expense{Issued: day(2023, 1, 5), RepeatMonths: 3, InBase: Money{Cents: 900}}, month(2023, 1), 900},
		{"before first occurrence", ExclusiveStartDay, Expense{Issued: day(2023, 1, 5), RepeatMonths: 1, InBase: Money{Cents: 900}}, month(2022, 12), 0},
		{"overlapping occurrences", ExclusiveStartDay, Expense{Issued: day(2023, 1, 20), End: day(2023, 2, 9), RepeatMonths: 1, InBase: Money{Cents: 2100}}, month(2023, 2), 900 + 800},
		{"overlapping occurrences (inclusive)", InclusiveStartDay, Expense{Issued: day(2023, 1, 20), End: day(2023, 2, 9), RepeatMonths: 1, InBase: Money{Cents: 2100}}, month(2023, 2), 900 + 900},
		{"overlapping occurrences in a long month", ExclusiveStartDay, Expense{Issued: day(2023, 1, 20), End: day(2023, 2, 9), RepeatMonths: 1, InBase: Money{Cents: 2100}}, month(2023, 3), 900 + 1100},
		{"anchor day missing in shifted month", ExclusiveStartDay, Expense{Issued: day(2023, 1, 31), End: day(2023, 2, 2), RepeatMonths: 1, InBase: Money{Cents: 300}}, month(2023, 2), 200},
		{"anchor day missing in shifted month (inclusive)", InclusiveStartDay, Expense{Issued: day(2023, 1, 31), End: day(2023, 2, 2), RepeatMonths: 1, InBase: Money{Cents: 300}}, month(2023, 2), 200},
		{"far future occurrence", ExclusiveStartDay, Expense{Issued: day(2000, 1, 1), RepeatMonths: 1, InBase: Money{Cents: 100}}, month(2999, 12), 100},
		{"yearly across leap day", ExclusiveStartDay, Expense{Issued: day(2023, 2, 28), RepeatMonths: 12, InBase: Money{Cents: 4200}}, month(2024, 2), 4200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prorator{Convention: tt.convention}.RepeatingAmountInMonth(tt.expense, tt.target)
			if err != nil {
				t.Fatalf("RepeatingAmountInMonth() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("RepeatingAmountInMonth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRepeatPeriodicity(t *testing.T) {
	e := Expense{Issued: day(2023, 1, 1), RepeatMonths: 1, InBase: Money{Cents: 1500}}
	p := Prorator{}
	for i := 0; i < 12; i++ {
		target := month(2023, 1).Add(i)
		got, err := p.RepeatingAmountInMonth(e, target)
		if err != nil {
			t.Fatalf("%s: %v", target, err)
		}
		if got != 1500 {
			t.Errorf("%s: got %d, want 1500", target, got)
		}
	}
}

func TestRepeatingAmountRejectsInvalidStep(t *testing.T) {
	for _, step := range []int{0, -1} {
		e := Expense{Issued: day(2023, 1, 1), RepeatMonths: step, InBase: Money{Cents: 100}}
		if _, err := (Prorator{}).RepeatingAmountInMonth(e, month(2023, 1)); !errors.Is(err, ErrInvalidRepeatInterval) {
			t.Fatalf("step %d: expected ErrInvalidRepeatInterval, got %v", step, err)
		}
	}
}

func TestAmountForExpense(t *testing.T) {
	p := Prorator{}
	simple := Expense{Issued: time.Date(2023, 4, 30, 23, 30, 0, 0, time.UTC), InBase: Money{Cents: 250}}
	if got, _ := p.AmountForExpense(simple, month(2023, 4)); got != 250 {
		t.Fatalf("simple in month: got %d", got)
	}
	if got, _ := p.AmountForExpense(simple, month(2023, 5)); got != 0 {
		t.Fatalf("simple outside month: got %d", got)
	}
	rep := Expense{Issued: day(2023, 1, 5), RepeatMonths: 2, InBase: Money{Cents: 300}}
	if got, _ := p.AmountForExpense(rep, month(2023, 3)); got != 300 {
		t.Fatalf("repeating: got %d", got)
	}
}

func TestParseConvention(t *testing.T) {
	for _, c := range []Convention{ExclusiveStartDay, InclusiveStartDay} {
		got, err := ParseConvention(c.String())
		if err != nil || got != c {
			t.Fatalf("ParseConvention(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseConvention("sideways"); err == nil {
		t.Fatal("expected error for unknown convention")
	}
}
