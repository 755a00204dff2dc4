package srt

import (
	"encoding/base64"
	"testing"
)

func TestParseStreamIDPlaintext(t *testing.T) {
	acl, err := ParseStreamID("#!::u=secret,r=live,m=publish")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if acl.UserName != "secret" || acl.ResourceName != "live" || acl.Mode != ModePublish {
		t.Errorf("unexpected acl %+v", acl)
	}
}

func TestParseStreamIDDefaultsToRequestMode(t *testing.T) {
	acl, err := ParseStreamID("#!::u=secret,r=live")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if acl.Mode != ModeRequest {
		t.Errorf("expected default mode Request, got %v", acl.Mode)
	}
}

func TestParseStreamIDBase64(t *testing.T) {
	encoded := base64.URLEncoding.EncodeToString([]byte("#!::u=secret,r=live,m=request"))
	acl, err := ParseStreamID(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if acl.UserName != "secret" || acl.ResourceName != "live" || acl.Mode != ModeRequest {
		t.Errorf("unexpected acl %+v", acl)
	}
}

func TestParseStreamIDRejectsUnknownMode(t *testing.T) {
	if _, err := ParseStreamID("#!::u=secret,r=live,m=bogus"); err != ErrBadMode {
		t.Errorf("expected ErrBadMode, got %v", err)
	}
}

func TestParseStreamIDRejectsMissingFields(t *testing.T) {
	cases := []string{"", "#!::u=secret", "#!::r=live", "not-a-valid-acl-!!!"}
	for _, c := range cases {
		if _, err := ParseStreamID(c); err == nil {
			t.Errorf("expected an error for input %q", c)
		}
	}
}
