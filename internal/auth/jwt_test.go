package auth

import (
	"testing"
	"time"
)

func TestIssueParseRoundTrip(t *testing.T) {
	pair, err := Issue("scanner-7", "scanner", "badgetrack", "test-key", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := Parse(pair.AccessToken, "test-key", "badgetrack")
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "scanner-7" || claims.Role != "scanner" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	pair, err := Issue("scanner-7", "scanner", "badgetrack", "test-key", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Parse(pair.AccessToken, "other-key", "badgetrack"); err == nil {
		t.Error("token signed with another key was accepted")
	}
	if _, err := Parse(pair.AccessToken, "test-key", "other-issuer"); err == nil {
		t.Error("token from another issuer was accepted")
	}
}
