package session

import (
	"context"
	"errors"
	"testing"
)

type fakeKeychain struct {
	values map[string]string
	err    error
}

func (f *fakeKeychain) Get(service, account string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[service+"/"+account]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (f *fakeKeychain) Set(service, account, value string) error {
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[service+"/"+account] = value
	return nil
}

func (f *fakeKeychain) Delete(service, account string) error {
	delete(f.values, service+"/"+account)
	return nil
}

func TestStore_SaveClear(t *testing.T) {
	s := NewStore(&fakeKeychain{})
	if got := s.CurrentToken(); got != "" {
		t.Errorf("empty store token = %q, want empty", got)
	}
	if err := s.Save("  tok-123 "); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := s.CurrentToken(); got != "tok-123" {
		t.Errorf("token = %q, want tok-123", got)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := s.CurrentToken(); got != "" {
		t.Errorf("token after Clear = %q, want empty", got)
	}
	if err := s.Save(" "); err == nil {
		t.Error("Save(blank) succeeded, want error")
	}
}

func TestStore_LookupErrorReadsAsAbsent(t *testing.T) {
	s := NewStore(&fakeKeychain{err: errors.New("locked")})
	if got := s.CurrentToken(); got != "" {
		t.Errorf("token = %q, want empty", got)
	}
}

func TestDefault_EnvWins(t *testing.T) {
	kc := &fakeKeychain{}
	store := NewStore(kc)
	store.Save("stored")

	t.Setenv(EnvToken, "from-env")
	if got := Default(store).CurrentToken(); got != "from-env" {
		t.Errorf("token = %q, want from-env", got)
	}

	t.Setenv(EnvToken, "")
	if got := Default(store).CurrentToken(); got != "stored" {
		t.Errorf("token = %q, want stored", got)
	}
}

func TestTokenFrom(t *testing.T) {
	ctx := WithToken(context.Background(), "request")
	if got := TokenFrom(ctx, Static("fallback")); got != "request" {
		t.Errorf("TokenFrom = %q, want request", got)
	}
	if got := TokenFrom(context.Background(), Static("fallback")); got != "fallback" {
		t.Errorf("TokenFrom = %q, want fallback", got)
	}
	if got := TokenFrom(context.Background(), nil); got != "" {
		t.Errorf("TokenFrom(nil) = %q, want empty", got)
	}
}

func TestMask(t *testing.T) {
	if got := Mask("abcdefghijkl"); got != "abcd****ijkl" {
		t.Errorf("Mask = %q, want abcd****ijkl", got)
	}
	if got := Mask("short"); got != "*****" {
		t.Errorf("Mask(short) = %q, want *****", got)
	}
}
