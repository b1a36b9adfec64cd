package notify

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSenderNotifyNewNotice(t *testing.T) {
	mock := NewMockProvider(testLogger())
	s := New(mock, testLogger())

	if err := s.NotifyNewNotice(context.Background(), "새로운 공지사항", "장학금 신청 안내"); err != nil {
		t.Fatalf("NotifyNewNotice() error = %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].Title != "새로운 공지사항" || sent[0].Body != "장학금 신청 안내" {
		t.Errorf("Sent() = %+v", sent)
	}

	if err := s.NotifyNewNotice(context.Background(), "t", ""); err == nil {
		t.Error("NotifyNewNotice() with empty body succeeded")
	}
	if len(mock.Sent()) != 1 {
		t.Error("empty body reached the provider")
	}
}

func TestBarkProviderPlain(t *testing.T) {
	var got barkPayload
	var gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("API-TOKEN")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"code":200,"message":"success","timestamp":1}`))
	}))
	defer srv.Close()

	p, err := NewBarkProvider(BarkOptions{ServerURL: srv.URL + "/", DeviceKey: "devkey", Token: "tok", Group: "한림"}, testLogger())
	if err != nil {
		t.Fatalf("NewBarkProvider() error = %v", err)
	}
	if err := p.Send(context.Background(), "새 공지", "도서관 휴관 안내"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/devkey" {
		t.Errorf("path = %q, want /devkey", gotPath)
	}
	if gotToken != "tok" {
		t.Errorf("API-TOKEN = %q, want tok", gotToken)
	}
	want := barkPayload{Title: "새 공지", Body: "도서관 휴관 안내", Group: "한림"}
	if got != want {
		t.Errorf("payload = %+v, want %+v", got, want)
	}
}

func TestBarkProviderEncrypted(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"code":200,"message":"success"}`))
	}))
	defer srv.Close()

	p, err := NewBarkProvider(BarkOptions{ServerURL: srv.URL, DeviceKey: "devkey", EncryptionKey: key}, testLogger())
	if err != nil {
		t.Fatalf("NewBarkProvider() error = %v", err)
	}
	if err := p.Send(context.Background(), "title", "본문"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if _, ok := body["title"]; ok {
		t.Error("plaintext title sent alongside ciphertext")
	}
	plain := decrypt(t, body["ciphertext"], []byte(key), []byte(body["iv"]))
	var got barkPayload
	if err := json.Unmarshal(plain, &got); err != nil {
		t.Fatalf("decrypted payload is not JSON: %v (%q)", err, plain)
	}
	if got.Title != "title" || got.Body != "본문" {
		t.Errorf("decrypted payload = %+v", got)
	}
}

func decrypt(t *testing.T, b64 string, key, iv []byte) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("decode ciphertext: %v", err)
	}
	if len(iv) != aes.BlockSize || len(data)%aes.BlockSize != 0 {
		t.Fatalf("bad iv %d or ciphertext length %d", len(iv), len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(data, data)
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize {
		t.Fatalf("bad padding %d", pad)
	}
	return data[:len(data)-pad]
}

func TestBarkProviderRejected(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"code":400,"message":"failed to get device token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p, err := NewBarkProvider(BarkOptions{ServerURL: srv.URL, DeviceKey: "unknown"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Send(context.Background(), "t", "b"); err == nil {
		t.Fatal("Send() succeeded on 400")
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1 (client errors are not retried)", hits.Load())
	}
}

func TestNewBarkProviderValidation(t *testing.T) {
	tests := []struct {
		name string
		opts BarkOptions
	}{
		{"missing server", BarkOptions{DeviceKey: "k"}},
		{"missing key", BarkOptions{ServerURL: "https://api.day.app"}},
		{"relative server", BarkOptions{ServerURL: "api.day.app", DeviceKey: "k"}},
		{"bad encryption key", BarkOptions{ServerURL: "https://api.day.app", DeviceKey: "k", EncryptionKey: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBarkProvider(tt.opts, testLogger()); err == nil {
				t.Error("NewBarkProvider() succeeded")
			}
		})
	}
}

func TestBrevoProviderSend(t *testing.T) {
	var req brevoSendRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p, err := NewBrevoProvider("secret", "noreply@example.com", "공지 알림", []string{"a@example.com", "b@example.com"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	p.endpoint = srv.URL

	if err := p.Send(context.Background(), "새 공지", "<중요> 안내"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if apiKey != "secret" {
		t.Errorf("api-key = %q", apiKey)
	}
	if len(req.To) != 2 || req.Subject != "새 공지" || req.Text != "<중요> 안내" {
		t.Errorf("request = %+v", req)
	}
	if !strings.Contains(req.HTML, "&lt;중요&gt;") {
		t.Errorf("HTML body not escaped: %q", req.HTML)
	}
}

func TestBrevoProviderClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewBrevoProvider("bad", "noreply@example.com", "", []string{"a@example.com"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	p.endpoint = srv.URL

	if err := p.Send(context.Background(), "t", "b"); err == nil {
		t.Fatal("Send() succeeded on 401")
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}
}

func TestNewProvidersRequireRecipients(t *testing.T) {
	if _, err := NewBrevoProvider("k", "from@example.com", "", nil, testLogger()); err == nil {
		t.Error("NewBrevoProvider() without recipients succeeded")
	}
	if _, err := NewGmailProvider(nil, nil, testLogger()); err == nil {
		t.Error("NewGmailProvider() without recipients succeeded")
	}
}

func TestBuildMessage(t *testing.T) {
	raw := buildMessage([]string{"a@example.com\r\nBcc: evil@example.com"}, "새 공지\nInjected: yes", "본문")
	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	msg := string(decoded)

	headers, body, ok := strings.Cut(msg, "\r\n\r\n")
	if !ok {
		t.Fatalf("message has no header/body separator: %q", msg)
	}
	if strings.Contains(headers, "\r\nBcc:") || strings.Contains(headers, "\nInjected:") {
		t.Errorf("header injection not prevented:\n%s", headers)
	}
	if !strings.Contains(headers, "Subject: =?utf-8?b?") {
		t.Errorf("subject not encoded:\n%s", headers)
	}
	if body != "본문" {
		t.Errorf("body = %q", body)
	}
}

func TestPKCS7Pad(t *testing.T) {
	for n := range 40 {
		padded := pkcs7Pad(make([]byte, n), aes.BlockSize)
		if len(padded)%aes.BlockSize != 0 || len(padded) <= n {
			t.Errorf("pkcs7Pad(%d bytes) = %d bytes", n, len(padded))
		}
		pad := int(padded[len(padded)-1])
		if pad != len(padded)-n {
			t.Errorf("pkcs7Pad(%d bytes) pad byte %d, want %d", n, pad, len(padded)-n)
		}
	}
}
