package redis

import (
	"strings"
	"testing"
)

func TestHashPin_ProducesSaltedRecord(t *testing.T) {
	t.Parallel()

	a, err := hashPin("4821")
	if err != nil {
		t.Fatalf("hashPin: %v", err)
	}
	b, err := hashPin("4821")
	if err != nil {
		t.Fatalf("hashPin: %v", err)
	}

	if a == b {
		t.Error("same pin must hash to different records under fresh salts")
	}
	if len(strings.SplitN(a, ":", 2)) != 2 {
		t.Errorf("record missing salt separator: %q", a)
	}
	if strings.Contains(a, "4821") {
		t.Error("plaintext pin leaked into record")
	}
}

func TestVerifyPin_MatchAndMismatch(t *testing.T) {
	t.Parallel()

	record, err := hashPin("4821")
	if err != nil {
		t.Fatalf("hashPin: %v", err)
	}

	ok, err := verifyPin(record, "4821")
	if err != nil || !ok {
		t.Errorf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = verifyPin(record, "0000")
	if err != nil || ok {
		t.Errorf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyPin_MalformedRecord(t *testing.T) {
	t.Parallel()

	for _, record := range []string{"", "nosalt", "zz:zz", "deadbeef:zz"} {
		if _, err := verifyPin(record, "4821"); err == nil {
			t.Errorf("expected error for malformed record %q", record)
		}
	}
}
