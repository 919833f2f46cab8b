package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasherWithCost(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
	}{
		{name: "simple password", password: "password123"},
		{name: "complex password", password: "P@ssw0rd!#$%^&*()"},
		{name: "unicode password", password: "密码123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if hash == tt.password {
				t.Error("Hash() returned the original password")
			}
			if !hasher.Verify(tt.password, hash) {
				t.Error("Verify() returned false for correct password")
			}
			if hasher.Verify(tt.password+"x", hash) {
				t.Error("Verify() returned true for wrong password")
			}
		})
	}
}

func TestPasswordHasher_VerifyInvalidHash(t *testing.T) {
	hasher := NewPasswordHasherWithCost(bcrypt.MinCost)
	if hasher.Verify("password123", "not-a-bcrypt-hash") {
		t.Error("Verify() returned true for an invalid hash")
	}
}

func TestNewPasswordHasherWithCost_Clamps(t *testing.T) {
	tests := []struct {
		cost int
		want int
	}{
		{cost: 0, want: bcrypt.MinCost},
		{cost: 10, want: 10},
		{cost: 99, want: bcrypt.MaxCost},
	}

	for _, tt := range tests {
		if got := NewPasswordHasherWithCost(tt.cost).cost; got != tt.want {
			t.Errorf("NewPasswordHasherWithCost(%d).cost = %d, want %d", tt.cost, got, tt.want)
		}
	}

	if got := NewPasswordHasher().cost; got != DefaultBcryptCost {
		t.Errorf("NewPasswordHasher().cost = %d, want %d", got, DefaultBcryptCost)
	}
}
