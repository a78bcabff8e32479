package credentials

import (
	"strings"
	"testing"
)

func TestGenerateFormat(t *testing.T) {
	pt, err := Generate("live")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(pt.Key, "fgw_live_") {
		t.Errorf("key prefix: got %q", pt.Key)
	}
	if len(pt.Key) != len("fgw_live_")+32 {
		t.Errorf("key length: got %d", len(pt.Key))
	}
	if !strings.HasPrefix(pt.Secret, "fgws_") {
		t.Errorf("secret prefix: got %q", pt.Secret)
	}
	if len(pt.Secret) != len("fgws_")+48 {
		t.Errorf("secret length: got %d", len(pt.Secret))
	}
}

func TestGenerateUnique(t *testing.T) {
	a, _ := Generate("sandbox")
	b, _ := Generate("sandbox")
	if a.Key == b.Key || a.Secret == b.Secret {
		t.Fatal("two generations produced identical material")
	}
}

func TestHashMatches(t *testing.T) {
	pt, _ := Generate("live")
	h := Hash(pt.Key)
	if !HashMatches(pt.Key, h) {
		t.Error("matching key rejected")
	}
	if HashMatches(pt.Key+"x", h) {
		t.Error("mutated key accepted")
	}
	if HashMatches("", h) {
		t.Error("empty key accepted")
	}
}

func TestPrefix(t *testing.T) {
	pt, _ := Generate("live")
	p := Prefix(pt.Key)
	if len(p) != PrefixLen {
		t.Fatalf("prefix length: got %d want %d", len(p), PrefixLen)
	}
	if !strings.HasPrefix(pt.Key, p) {
		t.Fatal("prefix is not a prefix of the key")
	}
	if Prefix("short") != "short" {
		t.Error("short input should round-trip unchanged")
	}
}
