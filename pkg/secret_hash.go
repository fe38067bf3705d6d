package pkg

import "golang.org/x/crypto/bcrypt"

const SecretHashCost = 14

// HashSecret hashes a shared secret (e.g. the scheduler secret) for storing in config or env.
func HashSecret(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), SecretHashCost)
	return BytesToString(bytes), err
}

func CheckSecretHash(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
