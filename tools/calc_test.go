package tools

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{expr: "2 + 2", want: "4"},
		{expr: "(2 + 2) * 2", want: "8"},
		{expr: "2 + 2 * 2", want: "6"},
		{expr: "10 - 3 - 2", want: "5"},
		{expr: "-5 + 3", want: "-2"},
		{expr: "-(2 + 3)", want: "-5"},
		{expr: "1.5 * 4", want: "6"},
		{expr: "100 / 4", want: "25"},
		{expr: "100 / 1.2", want: "83.3333333333333333"},
		{expr: "  7  ", want: "7"},
		{expr: "((1))", want: "1"},
		{expr: "0.1 + 0.2", want: "0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.expr, err)
			}
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("Eval(%q) = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	for _, expr := range []string{"5 / 0", "1 / (2 - 2)"} {
		if _, err := Eval(expr); !errors.Is(err, ErrDivisionByZero) {
			t.Errorf("Eval(%q): expected ErrDivisionByZero, got %v", expr, err)
		}
	}
}

func TestEvalParseErrors(t *testing.T) {
	exprs := []string{
		"(2+2",
		"2 +",
		"",
		"2 2",
		"abc",
		"2 + * 3",
		"1..2",
	}
	for _, expr := range exprs {
		_, err := Eval(expr)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("Eval(%q): expected ParseError, got %v", expr, err)
		}
	}
}

func TestComputeTax(t *testing.T) {
	tests := []struct {
		name  string
		gross string
		rate  string
		want  string
	}{
		// 120 gross at 20% VAT contains 20 of tax.
		{name: "20 percent", gross: "120", rate: "0.2", want: "20"},
		{name: "zero rate", gross: "100", rate: "0", want: "0"},
		{name: "fractional", gross: "107", rate: "0.07", want: "7"},
		{name: "negative rate", gross: "100", rate: "-0.5", want: "-100"},
		{name: "negative gross", gross: "-120", rate: "0.2", want: "-20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gross, _ := decimal.NewFromString(tt.gross)
			rate, _ := decimal.NewFromString(tt.rate)
			got, err := ComputeTax(gross, rate)
			if err != nil {
				t.Fatalf("ComputeTax: %v", err)
			}
			want, _ := decimal.NewFromString(tt.want)
			if !got.Round(10).Equal(want) {
				t.Errorf("ComputeTax(%s, %s) = %s, want %s", tt.gross, tt.rate, got, tt.want)
			}
		})
	}
}

func TestComputeTaxDegenerateRate(t *testing.T) {
	gross := decimal.NewFromInt(100)
	rate := decimal.NewFromInt(-1)
	if _, err := ComputeTax(gross, rate); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero for rate -1, got %v", err)
	}
}
