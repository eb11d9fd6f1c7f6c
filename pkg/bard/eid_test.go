package bard

import (
	"strings"
	"testing"
)

func TestCanonicalKeyPadding(t *testing.T) {
	cases := []struct {
		name   string
		qt     QuotaType
		scheme Scheme
		node   string
		field  string // expected 20-char field, pre-padding-direction
	}{
		{"ipn right-justified", QuotaDst, SchemeIPN, "7", strings.Repeat(" ", 19) + "7"},
		{"dtn left-justified", QuotaSrc, SchemeDTN, "alpha", "alpha" + strings.Repeat(" ", 15)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanonicalKey(tc.qt, tc.scheme, tc.node)
			want := string(tc.qt) + "_" + string(tc.scheme) + "_" + tc.field
			if got != want {
				t.Fatalf("CanonicalKey(%s,%s,%s) = %q, want %q", tc.qt, tc.scheme, tc.node, got, want)
			}
		})
	}
}

func TestCanonicalKeyFieldWidth(t *testing.T) {
	key := CanonicalKey(QuotaDst, SchemeIPN, "7")
	// "DST" + "_" + "ipn" + "_" + 20-char field.
	wantLen := len("DST") + 1 + len("ipn") + 1 + nodeFieldWidth
	if len(key) != wantLen {
		t.Fatalf("key length = %d, want %d (key=%q)", len(key), wantLen, key)
	}
}

// MakeKey(ParseKey(k)) == k for every canonical key.
func TestKeyRoundTrip(t *testing.T) {
	cases := []struct {
		qt     QuotaType
		scheme Scheme
		node   string
	}{
		{QuotaDst, SchemeIPN, "7"},
		{QuotaSrc, SchemeIMC, "42"},
		{QuotaDst, SchemeDTN, "alpha.bravo"},
		{QuotaSrc, SchemeDTN, "exactly-twenty-chars"},
		{QuotaDst, SchemeIPN, "123456789012345678901"}, // longer than field width
	}
	for _, tc := range cases {
		key := CanonicalKey(tc.qt, tc.scheme, tc.node)
		parsed, err := ParseKey(key)
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", key, err)
		}
		if parsed.QuotaType != tc.qt || parsed.Scheme != tc.scheme || parsed.Node != tc.node {
			t.Fatalf("ParseKey(%q) = %+v, want {%s %s %s}", key, parsed, tc.qt, tc.scheme, tc.node)
		}
		if remade := MakeKey(parsed); remade != key {
			t.Fatalf("MakeKey(ParseKey(%q)) = %q, want %q", key, remade, key)
		}
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "DST_ipn", "XYZ_ipn_                   7", "DST_bogus_                   7"} {
		if _, err := ParseKey(bad); err == nil {
			t.Fatalf("ParseKey(%q) expected error, got nil", bad)
		}
	}
}

func TestParseEndpointID(t *testing.T) {
	cases := []struct {
		in   string
		want EndpointID
	}{
		{"ipn:7.1", EndpointID{Scheme: SchemeIPN, Node: "7", Service: "1"}},
		{"imc:42.0", EndpointID{Scheme: SchemeIMC, Node: "42", Service: "0"}},
		{"dtn://alpha/inbox", EndpointID{Scheme: SchemeDTN, Node: "alpha", Service: "inbox"}},
		{"dtn://alpha", EndpointID{Scheme: SchemeDTN, Node: "alpha"}},
	}
	for _, tc := range cases {
		got, err := ParseEndpointID(tc.in)
		if err != nil {
			t.Fatalf("ParseEndpointID(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseEndpointID(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseEndpointIDRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "ipn", "ipn:7", "ipn:x.1", "ipn:7.y", "bogus:7.1", "dtn://"} {
		if _, err := ParseEndpointID(bad); err == nil {
			t.Fatalf("ParseEndpointID(%q) expected error, got nil", bad)
		}
	}
}

func TestParseSchemeAndQuotaType(t *testing.T) {
	if _, err := ParseScheme("bogus"); err == nil {
		t.Fatal("expected error for unknown scheme")
	}
	if s, err := ParseScheme("IPN"); err != nil || s != SchemeIPN {
		t.Fatalf("ParseScheme(IPN) = %v, %v", s, err)
	}
	if _, err := ParseQuotaType("bogus"); err == nil {
		t.Fatal("expected error for unknown quota type")
	}
	if qt, err := ParseQuotaType("dst"); err != nil || qt != QuotaDst {
		t.Fatalf("ParseQuotaType(dst) = %v, %v", qt, err)
	}
}
