package main

import (
	"strings"
	"testing"
)

func TestParseFlags(t *testing.T) {
	envelope, tz, file := parseFlags([]string{"--envelope", "--tz=Europe/Budapest", "report.txt"})
	if !envelope || tz != "Europe/Budapest" || file != "report.txt" {
		t.Errorf("got %v %q %q", envelope, tz, file)
	}

	envelope, tz, file = parseFlags([]string{"-"})
	if envelope || tz != "" || file != "" {
		t.Errorf("stdin: got %v %q %q", envelope, tz, file)
	}
}

func TestReadRecord(t *testing.T) {
	for in, want := range map[string]string{
		"* * 2 *\n":       "* * 2 *",
		"$tATA/* * 2 *\n": "* * 2 *",
		"$tATA/a/b\r\n":   "a/b",
	} {
		if got := readRecord(strings.NewReader(in)); got != want {
			t.Errorf("readRecord(%q) = %q, want %q", in, got, want)
		}
	}
}
