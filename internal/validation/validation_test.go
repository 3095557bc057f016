package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestCharset(t *testing.T) {
	if len(Charset) != 47 {
		t.Errorf("len(Charset) = %d, want 47", len(Charset))
	}
	for _, c := range Confusable {
		if strings.ContainsRune(Charset, c) {
			t.Errorf("Charset contains confusable %q", c)
		}
	}
	for _, c := range "az9AY" {
		if !strings.ContainsRune(Charset, c) {
			t.Errorf("Charset missing %q", c)
		}
	}
}

func TestValidateUserCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid code",
			code: "abcXYz34",
		},
		{
			name:    "too short",
			code:    "abcXY",
			wantErr: true,
			errMsg:  "length must be exactly 8 characters",
		},
		{
			name:    "too long",
			code:    "abcXYz34a",
			wantErr: true,
			errMsg:  "length must be exactly 8 characters",
		},
		{
			name:    "confusable character",
			code:    "abcXYz30",
			wantErr: true,
			errMsg:  "not allowed",
		},
		{
			name:    "separator",
			code:    "abcX-z34",
			wantErr: true,
			errMsg:  "not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserCode(tt.code, 8)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUserCode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateUserCode() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "https", raw: "https://login.example.com/oauth2/v2.0/authorize"},
		{name: "http with port", raw: "http://localhost:8081/token"},
		{name: "with query", raw: "https://idp.example.com/authorize?tenant=x"},
		{name: "relative", raw: "/authorize", wantErr: true},
		{name: "scheme only", raw: "https://", wantErr: true},
		{name: "javascript", raw: "javascript:alert(1)", wantErr: true},
		{name: "garbage", raw: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL("token_url", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateEndpointURL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) || verr.Field != "token_url" {
					t.Errorf("ValidateEndpointURL() error = %#v, want ValidationError for token_url", err)
				}
			}
		})
	}
}

func TestRequired(t *testing.T) {
	if err := Required(Field{"client_id", "abc"}, Field{"scope", "read"}); err != nil {
		t.Errorf("Required() unexpected error: %v", err)
	}

	err := Required(Field{"client_id", "abc"}, Field{"scope", "  "}, Field{"token_url", ""})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Required() error = %v, want ValidationError", err)
	}
	if verr.Field != "scope" {
		t.Errorf("Required() field = %q, want scope", verr.Field)
	}
	if got, want := err.Error(), "invalid scope: parameter is required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "already normalized", code: "abcXYz34", want: "abcXYz34"},
		{name: "surrounding whitespace", code: " abcXYz34\n", want: "abcXYz34"},
		{name: "inner whitespace", code: "abcX Yz34", want: "abcXYz34"},
		{name: "case preserved", code: "ABCxyz34", want: "ABCxyz34"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCode(tt.code); got != tt.want {
				t.Errorf("NormalizeCode() = %v, want %v", got, tt.want)
			}
		})
	}
}
