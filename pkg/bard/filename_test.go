package bard

import (
	"testing"
	"time"
)

// ParseFilename(FormatFilename(d)) == d for every descriptor.
func TestFilenameRoundTrip(t *testing.T) {
	sep := DefaultSeparators()
	cases := []struct {
		name string
		d    Descriptor
	}{
		{
			name: "plain ipn to dtn",
			d: Descriptor{
				Source:      EndpointID{Scheme: SchemeIPN, Node: "7", Service: "1"},
				Destination: EndpointID{Scheme: SchemeDTN, Node: "alpha/mailbox", Service: "0"},
				CreationTS:  dtnEpoch.Add(1234 * time.Second),
				SequenceNum: 42,
				PayloadLen:  1000,
				Expiration:  dtnEpoch.Add(5678 * time.Second),
			},
		},
		{
			name: "fragmented, millisecond timestamp",
			d: Descriptor{
				Source:      EndpointID{Scheme: SchemeIPN, Node: "3", Service: "2"},
				Destination: EndpointID{Scheme: SchemeIPN, Node: "9", Service: "5"},
				CreationTS:  dtnEpoch.Add(987654321 * time.Millisecond),
				CreationMS:  true,
				SequenceNum: 7,
				Fragment:    &Fragment{Offset: 100, Length: 900},
				PayloadLen:  250,
				Expiration:  dtnEpoch.Add(987654321*time.Millisecond + 10*time.Second),
			},
		},
		{
			name: "imc group destination",
			d: Descriptor{
				Source:      EndpointID{Scheme: SchemeDTN, Node: "authority-with-hyphens", Service: "0"},
				Destination: EndpointID{Scheme: SchemeIMC, Node: "99", Service: "1"},
				CreationTS:  dtnEpoch,
				SequenceNum: 0,
				PayloadLen:  1,
				Expiration:  dtnEpoch.Add(time.Second),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			name := FormatFilename(tc.d, sep)
			got, err := ParseFilename(name, sep)
			if err != nil {
				t.Fatalf("ParseFilename(%q): %v", name, err)
			}
			if got.Source != tc.d.Source {
				t.Errorf("Source = %+v, want %+v", got.Source, tc.d.Source)
			}
			if got.Destination != tc.d.Destination {
				t.Errorf("Destination = %+v, want %+v", got.Destination, tc.d.Destination)
			}
			if !got.CreationTS.Equal(tc.d.CreationTS) {
				t.Errorf("CreationTS = %v, want %v", got.CreationTS, tc.d.CreationTS)
			}
			if got.SequenceNum != tc.d.SequenceNum {
				t.Errorf("SequenceNum = %d, want %d", got.SequenceNum, tc.d.SequenceNum)
			}
			if (got.Fragment == nil) != (tc.d.Fragment == nil) {
				t.Fatalf("Fragment presence mismatch: got %+v, want %+v", got.Fragment, tc.d.Fragment)
			}
			if got.Fragment != nil && *got.Fragment != *tc.d.Fragment {
				t.Errorf("Fragment = %+v, want %+v", got.Fragment, tc.d.Fragment)
			}
			if got.PayloadLen != tc.d.PayloadLen {
				t.Errorf("PayloadLen = %d, want %d", got.PayloadLen, tc.d.PayloadLen)
			}
			if !got.Expiration.Equal(tc.d.Expiration) {
				t.Errorf("Expiration = %v, want %v", got.Expiration, tc.d.Expiration)
			}
		})
	}
}

func TestParseFilenameRejectsMalformed(t *testing.T) {
	sep := DefaultSeparators()
	for _, bad := range []string{"", "too_few_fields", "a-b-c_d-e-f_notanumber_0_none_10_20"} {
		if _, err := ParseFilename(bad, sep); err == nil {
			t.Fatalf("ParseFilename(%q) expected error, got nil", bad)
		}
	}
}

func TestDirectoryNameRoundTrip(t *testing.T) {
	sep := DefaultSeparators()
	dir := DirectoryName(QuotaDst, SchemeIPN, "7", sep)
	qt, scheme, node, err := ParseDirectoryName(dir, sep)
	if err != nil {
		t.Fatalf("ParseDirectoryName(%q): %v", dir, err)
	}
	if qt != QuotaDst || scheme != SchemeIPN || node != "7" {
		t.Fatalf("ParseDirectoryName(%q) = (%s,%s,%s), want (DST,ipn,7)", dir, qt, scheme, node)
	}
}
