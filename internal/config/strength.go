package config

import zxcvbn "github.com/ccojocar/zxcvbn-go"

const weakSecretScoreThreshold = 3

// IsWeakSecret returns whether a secret or password is considered weak.
// Used for the JWT signing secret at startup and for passwords on register.
func IsWeakSecret(secret string) bool {
	if secret == "" {
		return true
	}
	result := zxcvbn.PasswordStrength(secret, nil)
	return result.Score < weakSecretScoreThreshold
}
