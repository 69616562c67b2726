package clients

import "testing"

func TestMintVoiceToken_RoundTrips(t *testing.T) {
	secret := "sssh"
	tok := MintVoiceToken(secret, 1700000000)
	ts, _, err := VerifyVoiceToken(secret, tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != 1700000000 {
		t.Fatalf("unexpected timestamp: %d", ts)
	}
}

func TestMintVoiceToken_DistinctSecondsDiffer(t *testing.T) {
	secret := "sssh"
	a := MintVoiceToken(secret, 1700000000)
	b := MintVoiceToken(secret, 1700000001)
	if a == b {
		t.Fatalf("expected distinct tokens for distinct seconds")
	}
}

func TestVerifyVoiceToken_WrongSecretFails(t *testing.T) {
	tok := MintVoiceToken("right", 1700000000)
	if _, _, err := VerifyVoiceToken("wrong", tok); err == nil {
		t.Fatalf("expected verification failure with wrong secret")
	}
}

func TestVerifyVoiceToken_MissingPrefixFails(t *testing.T) {
	if _, _, err := VerifyVoiceToken("s", "not-a-token"); err == nil {
		t.Fatalf("expected error for missing prefix")
	}
}
