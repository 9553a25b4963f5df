package wallet

import (
	"testing"

	xerrors "SonaChat/internal/errors"
)

func TestNormalizeIdentityChecksums(t *testing.T) {
	got, err := NormalizeIdentity("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	if err != nil {
		t.Fatalf("NormalizeIdentity failed: %v", err)
	}
	if got != "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359" {
		t.Errorf("unexpected checksummed address %q", got)
	}
}

func TestNormalizeIdentityEmptyIsAnonymous(t *testing.T) {
	got, err := NormalizeIdentity("   ")
	if err != nil {
		t.Fatalf("NormalizeIdentity failed: %v", err)
	}
	if !IsAnonymous(got) {
		t.Errorf("expected anonymous identity, got %q", got)
	}
}

func TestNormalizeIdentityRejectsGarbage(t *testing.T) {
	for _, input := range []string{"not-an-address", "0x123", "0xZZ6916095ca1df60bb79ce92ce3ea74c37c5d359"} {
		_, err := NormalizeIdentity(input)
		if err == nil {
			t.Errorf("expected error for %q", input)
			continue
		}
		if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
			t.Errorf("expected invalid argument for %q, got %q", input, xerrors.CodeOf(err))
		}
	}
}
