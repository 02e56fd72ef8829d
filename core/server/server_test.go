package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/discord/router"
)

type stubRegistrar struct {
	got []*discordgo.ApplicationCommand
	err error
}

func (s *stubRegistrar) RegisterCommands(_ context.Context, cmds []*discordgo.ApplicationCommand) error {
	s.got = cmds
	return s.err
}

func newTestServer(t *testing.T, reg *stubRegistrar) (http.Handler, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	v, err := discord.NewVerifier(hex.EncodeToString(pub))
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	s := New(Options{
		Verifier:   v,
		Dispatcher: router.New(),
		Registrar:  reg,
		Commands:   []*discordgo.ApplicationCommand{{Name: "questions"}},
	})
	return s.Handler(), priv
}

func signed(priv ed25519.PrivateKey, body string) *http.Request {
	ts := "1700000000"
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	r.Header.Set("X-Signature-Ed25519", hex.EncodeToString(ed25519.Sign(priv, []byte(ts+body))))
	r.Header.Set("X-Signature-Timestamp", ts)
	return r
}

func TestPingReturnsPong(t *testing.T) {
	h, priv := newTestServer(t, &stubRegistrar{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signed(priv, `{"id":"1","type":1,"token":"t","version":1}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp discordgo.InteractionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Type != discordgo.InteractionResponsePong {
		t.Fatalf("type = %d", resp.Type)
	}
}

func TestBadSignatureIs401(t *testing.T) {
	h, _ := newTestServer(t, &stubRegistrar{})
	_, other, _ := ed25519.GenerateKey(rand.Reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signed(other, `{"type":1}`))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", rec.Code)
	}
}

func TestWrongMethodIs405(t *testing.T) {
	h, _ := newTestServer(t, &stubRegistrar{})
	for _, path := range []string{"/", "/set-commands"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: code = %d, want 405", path, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, &stubRegistrar{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestSetCommands(t *testing.T) {
	reg := &stubRegistrar{}
	h, _ := newTestServer(t, reg)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/set-commands", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "Commands created" {
		t.Fatalf("set-commands = %d %q", rec.Code, rec.Body.String())
	}
	if len(reg.got) != 1 {
		t.Fatalf("registered %d commands", len(reg.got))
	}

	reg.err = errors.New("401 Unauthorized")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/set-commands", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	h, _ := newTestServer(t, &stubRegistrar{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}
