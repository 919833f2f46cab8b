package chat

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRoomName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "valid name", input: "Alpha", want: "Alpha"},
		{name: "trims surrounding space", input: "  Alpha  ", want: "Alpha"},
		{name: "empty", input: "", wantErr: ErrRoomNameEmpty},
		{name: "whitespace only", input: " \t\n", wantErr: ErrRoomNameEmpty},
		{name: "too long", input: strings.Repeat("a", MaxRoomNameLength+1), wantErr: ErrRoomNameTooLong},
		{name: "max length multibyte", input: strings.Repeat("é", MaxRoomNameLength), want: strings.Repeat("é", MaxRoomNameLength)},
		{name: "invalid utf8", input: "bad\xff", wantErr: ErrRoomNameInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateRoomName(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateRoomName() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("ValidateRoomName() error = %v, want ErrValidation in chain", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateRoomName() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateRoomName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "valid", input: "hi", want: "hi"},
		{name: "trimmed", input: "  hi \n", want: "hi"},
		{name: "empty", input: "", wantErr: ErrMessageEmpty},
		{name: "whitespace only", input: "   \t ", wantErr: ErrMessageEmpty},
		{name: "too long", input: strings.Repeat("x", MaxMessageLength+1), wantErr: ErrMessageTooLong},
		{name: "invalid utf8", input: "\xfe\xff", wantErr: ErrMessageInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateMessage(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateMessage() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeGroupID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "nanoid", input: "V1StGXR8_Z5jdHi6B-myT", want: "V1StGXR8_Z5jdHi6B-myT"},
		{name: "uuid", input: "6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f", want: "6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f"},
		{name: "trims input", input: "  abc123 ", want: "abc123"},
		{name: "empty", input: "   ", wantErr: ErrGroupIDEmpty},
		{name: "bad characters", input: "abc 123", wantErr: ErrGroupIDInvalid},
		{name: "too long", input: strings.Repeat("a", MaxGroupIDLength+1), wantErr: ErrGroupIDInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeGroupID(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NormalizeGroupID() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeGroupID() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeGroupID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewGroupID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := NewGroupID()
		if err != nil {
			t.Fatalf("NewGroupID() unexpected error: %v", err)
		}
		if len(id) != GroupIDLength {
			t.Fatalf("len(NewGroupID()) = %d, want %d", len(id), GroupIDLength)
		}
		if _, err := NormalizeGroupID(id); err != nil {
			t.Fatalf("NewGroupID() produced %q rejected by NormalizeGroupID: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("NewGroupID() produced duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestAuthorDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		author Author
		want   string
	}{
		{name: "full name wins", author: Author{Email: "u@example.com", FullName: "Uma"}, want: "Uma"},
		{name: "email fallback", author: Author{Email: "u@example.com"}, want: "u@example.com"},
		{name: "placeholder", author: PlaceholderAuthor("user-1"), want: "Unknown user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.author.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}
