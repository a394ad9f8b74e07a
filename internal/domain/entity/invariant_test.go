package entity

import "testing"

func TestPresent(t *testing.T) {
	cases := map[string]bool{
		"":        false,
		" ":       false,
		"\t\r\n":  false,
		" ":  false,
		"a":       true,
		" a ":     true,
		"Assados": true,
	}
	for in, want := range cases {
		if got := present(in); got != want {
			t.Errorf("present(%q) = %v, want %v", in, got, want)
		}
	}
}
